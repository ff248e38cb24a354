package scoring

import (
	"testing"
	"time"
)

var asOf = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) *time.Time {
	t := asOf.AddDate(0, 0, -n)
	return &t
}

func TestHubZoneContractorWithMatchingOpportunityIsHighPriority(t *testing.T) {
	snapshot := Snapshot{
		Email:            "sales@firm.com",
		NAICSCodes:       []string{"541512"},
		BusinessTypes:    []string{"HUBZone"},
		RegistrationDate: daysAgo(2),
	}
	market := NewMarket([]string{"541512"}, asOf)

	result := Score(snapshot, market)

	if result.Score < 70 {
		t.Fatalf("expected score >= 70, got %d (%v)", result.Score, result.Factors)
	}
	if result.Priority != PriorityHigh {
		t.Fatalf("expected high priority, got %s", result.Priority)
	}
}

func TestScoreIsDeterministicAndBounded(t *testing.T) {
	snapshots := []Snapshot{
		{},
		{Email: "not an email"},
		{Email: "owner@gmail.com", NAICSCodes: []string{"236220"}},
		{
			Email:            "bd@contractor.us",
			NAICSCodes:       []string{"541511", "541512"},
			BusinessTypes:    []string{"Service Disabled Veteran Owned Business", "Small Business"},
			RegistrationDate: daysAgo(1),
			CAGECode:         "1ABC2",
			State:            "VA",
		},
	}
	market := NewMarket([]string{"541512", "236115"}, asOf)

	for _, snapshot := range snapshots {
		first := Score(snapshot, market)
		second := Score(snapshot, market)
		if first.Score != second.Score || first.Priority != second.Priority {
			t.Fatalf("score not deterministic: %+v vs %+v", first, second)
		}
		if first.Score < 0 || first.Score > 100 {
			t.Fatalf("score out of range: %d", first.Score)
		}
		if first.Priority != PriorityFor(first.Score) {
			t.Fatalf("priority %s inconsistent with score %d", first.Priority, first.Score)
		}
	}
}

func TestFullyQualifiedContractorScoresEveryFactor(t *testing.T) {
	snapshot := Snapshot{
		Email:            "bd@contractor.us",
		NAICSCodes:       []string{"541512"},
		BusinessTypes:    []string{"8(a) Program Participant"},
		RegistrationDate: daysAgo(1),
		CAGECode:         "1ABC2",
		State:            "VA",
	}
	result := Score(snapshot, NewMarket([]string{"541512"}, asOf))
	if result.Score != 95 {
		t.Fatalf("expected 95, got %d (%v)", result.Score, result.Factors)
	}
	if len(result.Factors) != 8 {
		t.Fatalf("expected all 8 factors, got %v", result.Factors)
	}
	if Clamp(result.Score+20) != 100 {
		t.Fatal("expected clamp to cap at 100")
	}
}

func TestEmailFactors(t *testing.T) {
	market := NewMarket(nil, asOf)
	cases := []struct {
		email string
		want  int
	}{
		{"", 0},
		{"broken@", 0},
		{"owner@gmail.com", weightEmailParseable},
		{"owner@firm.com", weightEmailParseable + weightEmailBusiness},
	}
	for _, tc := range cases {
		if got := Score(Snapshot{Email: tc.email}, market).Score; got != tc.want {
			t.Errorf("email %q: expected %d, got %d", tc.email, tc.want, got)
		}
	}
}

func TestOpportunityMatchExactBeatsSector(t *testing.T) {
	market := NewMarket([]string{"541512"}, asOf)

	if got := opportunityMatch([]string{"541512"}, market); got != weightExactMatch {
		t.Fatalf("expected exact match bonus, got %d", got)
	}
	if got := opportunityMatch([]string{"541519"}, market); got != weightSectorMatch {
		t.Fatalf("expected sector match bonus, got %d", got)
	}
	if got := opportunityMatch([]string{"236220"}, market); got != 0 {
		t.Fatalf("expected no match, got %d", got)
	}
	if got := opportunityMatch([]string{"236220", "541512"}, market); got != weightExactMatch {
		t.Fatalf("expected secondary code exact match, got %d", got)
	}
}

func TestRegistrationRecencyBandsDecrease(t *testing.T) {
	cases := []struct {
		days int
		want int
	}{
		{0, 15}, {7, 15}, {8, 12}, {30, 12}, {60, 8}, {120, 5}, {300, 3}, {800, 1},
	}
	previous := 100
	for _, tc := range cases {
		got := registrationRecency(daysAgo(tc.days), asOf)
		if got != tc.want {
			t.Errorf("%d days: expected %d, got %d", tc.days, tc.want, got)
		}
		if got > previous {
			t.Errorf("%d days: recency increased from %d to %d", tc.days, previous, got)
		}
		previous = got
	}
	if registrationRecency(nil, asOf) != 0 {
		t.Fatal("expected unknown registration to score 0")
	}
}

func TestBusinessTypeTier(t *testing.T) {
	cases := []struct {
		types []string
		want  int
	}{
		{nil, 0},
		{[]string{"Corporate Entity"}, 0},
		{[]string{"Small Business"}, tierSmall},
		{[]string{"Veteran Owned Business"}, tierPreferred},
		{[]string{"Small Business", "Women Owned Small Business"}, tierSetAside},
		{[]string{"Service Disabled Veteran Owned Business"}, tierSetAside},
	}
	for _, tc := range cases {
		if got := businessTypeTier(tc.types); got != tc.want {
			t.Errorf("%v: expected %d, got %d", tc.types, tc.want, got)
		}
	}
}

func TestPriorityThresholds(t *testing.T) {
	cases := map[int]Priority{0: PriorityLow, 44: PriorityLow, 45: PriorityMedium, 69: PriorityMedium, 70: PriorityHigh, 100: PriorityHigh}
	for score, want := range cases {
		if got := PriorityFor(score); got != want {
			t.Errorf("score %d: expected %s, got %s", score, want, got)
		}
	}
}
