package repository

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestBuildTargetQueryAlwaysExcludes(t *testing.T) {
	query, args := BuildTargetQuery(Selection{})

	for _, fragment := range []string{
		"c.stage NOT IN ($1, $2, $3)",
		"c.email IS NOT NULL",
		"c.email <> $4",
		"LEFT JOIN LATERAL",
		"WHERE o.active",
		"COALESCE(m.match_count, 0)",
	} {
		if !strings.Contains(query, fragment) {
			t.Errorf("expected %q in query:\n%s", fragment, query)
		}
	}
	if strings.Contains(query, "m.notice_id IS NOT NULL") {
		t.Errorf("contractors without a matched opportunity must stay selectable:\n%s", query)
	}
	if len(args) != 4 || args[0] != "converted" || args[1] != "churned" || args[2] != "unsubscribed" {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestBuildTargetQueryOptionalFilters(t *testing.T) {
	cutoff := time.Date(2026, 2, 22, 0, 0, 0, 0, time.UTC)
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	query, args := BuildTargetQuery(Selection{
		Stages:          []string{"new", "contacted"},
		CodePrefixes:    []string{"5415", "2362"},
		MinScore:        45,
		Priority:        "high",
		ContractorIDs:   ids,
		ContactedBefore: cutoff,
		Limit:           50,
	})

	for _, fragment := range []string{
		"c.last_contacted_at IS NULL OR c.last_contacted_at <",
		"c.stage IN (",
		"c.naics_code LIKE",
		"c.score >=",
		"c.priority =",
		"c.id IN (",
		"ORDER BY c.score DESC",
	} {
		if !strings.Contains(query, fragment) {
			t.Errorf("expected %q in query:\n%s", fragment, query)
		}
	}

	var sawIDs, sawPrefix, sawCutoff int
	for _, arg := range args {
		switch v := arg.(type) {
		case uuid.UUID:
			sawIDs++
		case string:
			if v == "5415%" || v == "2362%" {
				sawPrefix++
			}
		case time.Time:
			if v.Equal(cutoff) {
				sawCutoff++
			}
		}
	}
	if sawIDs != 2 || sawPrefix != 2 || sawCutoff != 1 {
		t.Fatalf("unexpected args %v", args)
	}
}
