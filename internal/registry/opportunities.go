package registry

import (
	"context"
	"encoding/json"
	"iter"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// OpportunityRecord is one solicitation or contract notice.
type OpportunityRecord struct {
	NoticeID           string
	Title              string
	SolicitationNumber string
	Agency             string
	NAICSCode          string
	SetAside           string
	NoticeType         string
	Description        string
	Link               string
	PostedDate         *time.Time
	ResponseDeadline   *time.Time
	Raw                json.RawMessage
}

// Valid reports whether the record carries its upsert key.
func (r OpportunityRecord) Valid() bool {
	return strings.TrimSpace(r.NoticeID) != ""
}

// Opportunities streams notices for q.Code posted inside the window. The
// registry requires a posted window, so callers must set From and To.
func (c *Client) Opportunities(ctx context.Context, q Query) iter.Seq2[OpportunityRecord, error] {
	return paginate(ctx, c, q, func(ctx context.Context, page int) ([]OpportunityRecord, int, error) {
		params := url.Values{}
		params.Set("limit", strconv.Itoa(c.pageSize))
		params.Set("offset", strconv.Itoa(page*c.pageSize))
		if q.Code != "" {
			params.Set("ncode", q.Code)
		}
		if q.From != nil {
			params.Set("postedFrom", formatQueryDate(*q.From))
		}
		if q.To != nil {
			params.Set("postedTo", formatQueryDate(*q.To))
		}

		body, err := c.get(ctx, opportunitiesPath, params)
		if err != nil {
			return nil, 0, err
		}

		total, raws, err := decodePage(body, "opportunitiesData")
		if err != nil {
			return nil, 0, err
		}

		records := make([]OpportunityRecord, 0, len(raws))
		for _, raw := range raws {
			var api apiOpportunity
			if err := json.Unmarshal(raw, &api); err != nil {
				c.log.Warn("registry opportunity malformed", "code", q.Code, "error", err)
				records = append(records, OpportunityRecord{Raw: raw})
				continue
			}
			record := api.toRecord()
			record.Raw = raw
			records = append(records, record)
		}
		return records, total, nil
	})
}

type apiOpportunity struct {
	NoticeID           string `json:"noticeId"`
	Title              string `json:"title"`
	SolicitationNumber string `json:"solicitationNumber"`
	FullParentPathName string `json:"fullParentPathName"`
	PostedDate         string `json:"postedDate"`
	Type               string `json:"type"`
	SetAside           string `json:"typeOfSetAsideDescription"`
	ResponseDeadLine   string `json:"responseDeadLine"`
	NaicsCode          string `json:"naicsCode"`
	Description        string `json:"description"`
	UILink             string `json:"uiLink"`
}

func (a *apiOpportunity) toRecord() OpportunityRecord {
	agency := strings.TrimSpace(a.FullParentPathName)
	if idx := strings.Index(agency, "."); idx > 0 {
		agency = agency[:idx]
	}
	return OpportunityRecord{
		NoticeID:           strings.TrimSpace(a.NoticeID),
		Title:              strings.TrimSpace(a.Title),
		SolicitationNumber: strings.TrimSpace(a.SolicitationNumber),
		Agency:             agency,
		NAICSCode:          strings.TrimSpace(a.NaicsCode),
		SetAside:           strings.TrimSpace(a.SetAside),
		NoticeType:         strings.TrimSpace(a.Type),
		Description:        strings.TrimSpace(a.Description),
		Link:               strings.TrimSpace(a.UILink),
		PostedDate:         parseDate(a.PostedDate),
		ResponseDeadline:   parseDate(a.ResponseDeadLine),
	}
}
