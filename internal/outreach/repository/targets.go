package repository

import (
	"strings"

	"github.com/huandu/go-sqlbuilder"
)

// bestMatch picks the most relevant active opportunity for the outer
// contractor row: exact code before sector, soonest deadline first. The
// window count is taken before LIMIT so it is the full match count. It is
// left joined, so contractors without a match are still selected with empty
// match columns.
const bestMatch = `LATERAL (
	SELECT o.notice_id, o.title, o.agency, o.link, o.response_deadline,
		count(*) OVER () AS match_count
	FROM opportunities o
	WHERE o.active
		AND (o.naics_code = c.naics_code OR left(o.naics_code, 4) = left(c.naics_code, 4))
	ORDER BY (o.naics_code = c.naics_code) DESC, o.response_deadline ASC NULLS LAST, o.posted_date DESC NULLS LAST
	LIMIT 1
) m`

var excludedStages = []interface{}{"converted", "churned", "unsubscribed"}

// BuildTargetQuery renders the campaign audience query for sel.
func BuildTargetQuery(sel Selection) (string, []interface{}) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(
		"c.id", "c.email", "c.legal_name", "c.dba_name", "c.contact_name", "c.naics_code", "c.state",
		"c.stage", "c.score", "c.priority", "c.promo_code", "c.contact_attempts",
		"COALESCE(m.notice_id, '')", "COALESCE(m.title, '')", "m.agency", "m.link", "m.response_deadline",
		"COALESCE(m.match_count, 0)",
	)
	sb.From("contractors c")
	sb.JoinWithOption(sqlbuilder.LeftJoin, bestMatch, "true")

	where := []string{
		sb.NotIn("c.stage", excludedStages...),
		sb.IsNotNull("c.email"),
		sb.NotEqual("c.email", ""),
		sb.IsNotNull("c.naics_code"),
	}
	if !sel.ContactedBefore.IsZero() {
		where = append(where, sb.Or(
			sb.IsNull("c.last_contacted_at"),
			sb.LessThan("c.last_contacted_at", sel.ContactedBefore),
		))
	}
	if len(sel.Stages) > 0 {
		where = append(where, sb.In("c.stage", toArgs(sel.Stages)...))
	}
	if len(sel.CodePrefixes) > 0 {
		likes := make([]string, 0, len(sel.CodePrefixes))
		for _, prefix := range sel.CodePrefixes {
			likes = append(likes, sb.Like("c.naics_code", strings.TrimSpace(prefix)+"%"))
		}
		where = append(where, sb.Or(likes...))
	}
	if sel.MinScore > 0 {
		where = append(where, sb.GreaterEqualThan("c.score", sel.MinScore))
	}
	if sel.Priority != "" {
		where = append(where, sb.Equal("c.priority", sel.Priority))
	}
	if len(sel.ContractorIDs) > 0 {
		where = append(where, sb.In("c.id", toArgs(sel.ContractorIDs)...))
	}
	sb.Where(where...)
	sb.OrderBy("c.score DESC", "c.last_contacted_at ASC NULLS FIRST", "c.id")
	if sel.Limit > 0 {
		sb.Limit(sel.Limit)
	}

	return sb.Build()
}

// toArgs boxes values one by one. sqlbuilder.Flatten would also unpack the
// byte arrays behind uuid.UUID.
func toArgs[T any](values []T) []interface{} {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
