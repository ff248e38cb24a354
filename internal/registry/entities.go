package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// EntityRecord is one contractor registration as returned by the registry.
// Records that failed to decode carry only Raw and report Valid() == false.
type EntityRecord struct {
	UEI              string
	CAGECode         string
	LegalName        string
	DBAName          string
	Email            string
	ContactName      string
	Phone            string
	Website          string
	City             string
	State            string
	PrimaryNAICS     string
	NAICSCodes       []string
	BusinessTypes    []string
	RegistrationDate *time.Time
	ExpirationDate   *time.Time
	Raw              json.RawMessage
}

// Valid reports whether the record carries its upsert key.
func (r EntityRecord) Valid() bool {
	return strings.TrimSpace(r.UEI) != ""
}

// Entities streams contractor registrations for q.Code registered inside the window.
func (c *Client) Entities(ctx context.Context, q Query) iter.Seq2[EntityRecord, error] {
	return paginate(ctx, c, q, func(ctx context.Context, page int) ([]EntityRecord, int, error) {
		params := url.Values{}
		params.Set("page", strconv.Itoa(page))
		params.Set("size", strconv.Itoa(c.pageSize))
		params.Set("includeSections", "entityRegistration,coreData,assertions,pointsOfContact")
		if q.Code != "" {
			params.Set("naicsCode", q.Code)
		}
		if q.From != nil && q.To != nil {
			params.Set("registrationDate", fmt.Sprintf("[%s,%s]", formatQueryDate(*q.From), formatQueryDate(*q.To)))
		}

		body, err := c.get(ctx, entitiesPath, params)
		if err != nil {
			return nil, 0, err
		}

		total, raws, err := decodePage(body, "entityData")
		if err != nil {
			return nil, 0, err
		}

		records := make([]EntityRecord, 0, len(raws))
		for _, raw := range raws {
			var api apiEntity
			if err := json.Unmarshal(raw, &api); err != nil {
				c.log.Warn("registry entity malformed", "code", q.Code, "error", err)
				records = append(records, EntityRecord{Raw: raw})
				continue
			}
			record := api.toRecord()
			record.Raw = raw
			records = append(records, record)
		}
		return records, total, nil
	})
}

type apiPOC struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	USPhone   string `json:"usPhone"`
}

func (p *apiPOC) name() string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

type apiEntity struct {
	EntityRegistration struct {
		UEISAM            string `json:"ueiSAM"`
		CageCode          string `json:"cageCode"`
		LegalBusinessName string `json:"legalBusinessName"`
		DBAName           string `json:"dbaName"`
		RegistrationDate  string `json:"registrationDate"`
		ExpirationDate    string `json:"registrationExpirationDate"`
	} `json:"entityRegistration"`
	CoreData struct {
		EntityInformation struct {
			EntityURL string `json:"entityURL"`
		} `json:"entityInformation"`
		PhysicalAddress struct {
			City                string `json:"city"`
			StateOrProvinceCode string `json:"stateOrProvinceCode"`
		} `json:"physicalAddress"`
		BusinessTypes struct {
			BusinessTypeList []struct {
				Desc string `json:"businessTypeDesc"`
			} `json:"businessTypeList"`
			SBABusinessTypeList []struct {
				Desc string `json:"sbaBusinessTypeDesc"`
			} `json:"sbaBusinessTypeList"`
		} `json:"businessTypes"`
	} `json:"coreData"`
	Assertions struct {
		GoodsAndServices struct {
			PrimaryNaics string `json:"primaryNaics"`
			NaicsList    []struct {
				NaicsCode string `json:"naicsCode"`
			} `json:"naicsList"`
		} `json:"goodsAndServices"`
	} `json:"assertions"`
	PointsOfContact struct {
		ElectronicBusinessPOC *apiPOC `json:"electronicBusinessPOC"`
		GovernmentBusinessPOC *apiPOC `json:"governmentBusinessPOC"`
	} `json:"pointsOfContact"`
}

func (a *apiEntity) toRecord() EntityRecord {
	reg := a.EntityRegistration
	record := EntityRecord{
		UEI:              strings.TrimSpace(reg.UEISAM),
		CAGECode:         strings.TrimSpace(reg.CageCode),
		LegalName:        strings.TrimSpace(reg.LegalBusinessName),
		DBAName:          strings.TrimSpace(reg.DBAName),
		Website:          strings.TrimSpace(a.CoreData.EntityInformation.EntityURL),
		City:             strings.TrimSpace(a.CoreData.PhysicalAddress.City),
		State:            strings.TrimSpace(a.CoreData.PhysicalAddress.StateOrProvinceCode),
		PrimaryNAICS:     strings.TrimSpace(a.Assertions.GoodsAndServices.PrimaryNaics),
		RegistrationDate: parseDate(reg.RegistrationDate),
		ExpirationDate:   parseDate(reg.ExpirationDate),
	}

	for _, item := range a.Assertions.GoodsAndServices.NaicsList {
		if code := strings.TrimSpace(item.NaicsCode); code != "" {
			record.NAICSCodes = append(record.NAICSCodes, code)
		}
	}
	if record.PrimaryNAICS == "" && len(record.NAICSCodes) > 0 {
		record.PrimaryNAICS = record.NAICSCodes[0]
	}

	for _, item := range a.CoreData.BusinessTypes.BusinessTypeList {
		if desc := strings.TrimSpace(item.Desc); desc != "" {
			record.BusinessTypes = append(record.BusinessTypes, desc)
		}
	}
	for _, item := range a.CoreData.BusinessTypes.SBABusinessTypeList {
		if desc := strings.TrimSpace(item.Desc); desc != "" {
			record.BusinessTypes = append(record.BusinessTypes, desc)
		}
	}

	for _, poc := range []*apiPOC{a.PointsOfContact.ElectronicBusinessPOC, a.PointsOfContact.GovernmentBusinessPOC} {
		if poc == nil {
			continue
		}
		if record.Email == "" && strings.TrimSpace(poc.Email) != "" {
			record.Email = strings.TrimSpace(poc.Email)
			record.ContactName = poc.name()
		}
		if record.Phone == "" {
			record.Phone = strings.TrimSpace(poc.USPhone)
		}
		if record.ContactName == "" {
			record.ContactName = poc.name()
		}
	}

	return record
}
