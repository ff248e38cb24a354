// Package scoring computes contractor sales-readiness scores. Everything here
// is pure: identical snapshots and market context always give identical results.
package scoring

import (
	"strings"
	"time"

	"govcon_outreach_backend/platform/validator"
)

const (
	// Version tracks the scoring model. Bump it when weights change.
	Version = "2026-govcon-v1"

	// MaxScore is the ceiling every score is clamped to.
	MaxScore = 100

	weightEmailParseable    = 12
	weightEmailBusiness     = 8
	weightClassification    = 10
	weightValidationCode    = 10
	weightJurisdiction      = 5
	weightExactMatch        = 20
	weightSectorMatch       = 12
	sectorPrefixLength      = 4
	highPriorityThreshold   = 70
	mediumPriorityThreshold = 45
)

// Priority is the label derived from a score.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Snapshot is the subset of a contractor record that drives its score.
type Snapshot struct {
	Email            string
	NAICSCodes       []string // primary code first
	BusinessTypes    []string
	RegistrationDate *time.Time
	CAGECode         string
	State            string
}

// Market is the context a snapshot is scored against.
type Market struct {
	activeCodes   map[string]struct{}
	activeSectors map[string]struct{}
	AsOf          time.Time
}

// NewMarket builds a market context from the classification codes of
// currently active opportunities.
func NewMarket(activeCodes []string, asOf time.Time) Market {
	m := Market{
		activeCodes:   make(map[string]struct{}, len(activeCodes)),
		activeSectors: make(map[string]struct{}, len(activeCodes)),
		AsOf:          asOf,
	}
	for _, code := range activeCodes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		m.activeCodes[code] = struct{}{}
		if sector, ok := Sector(code); ok {
			m.activeSectors[sector] = struct{}{}
		}
	}
	return m
}

// HasCode reports whether code is an active opportunity code.
func (m Market) HasCode(code string) bool {
	_, ok := m.activeCodes[strings.TrimSpace(code)]
	return ok
}

// HasSector reports whether any active opportunity falls in sector.
func (m Market) HasSector(sector string) bool {
	_, ok := m.activeSectors[strings.TrimSpace(sector)]
	return ok
}

// Result is a computed score with the contribution of each factor.
type Result struct {
	Score    int
	Priority Priority
	Factors  map[string]int
	Version  string
}

var emailValidator = validator.New()

// Score computes the 0-100 score for s against m.
func Score(s Snapshot, m Market) Result {
	factors := map[string]int{}

	email := strings.TrimSpace(s.Email)
	if email != "" && emailValidator.Var(email, "email") == nil {
		factors["email_parseable"] = weightEmailParseable
		if !IsFreeMailDomain(email) {
			factors["email_business_domain"] = weightEmailBusiness
		}
	}

	if primaryCode(s.NAICSCodes) != "" {
		factors["classification"] = weightClassification
	}
	if tier := businessTypeTier(s.BusinessTypes); tier > 0 {
		factors["business_type"] = tier
	}
	if recency := registrationRecency(s.RegistrationDate, m.AsOf); recency > 0 {
		factors["registration_recency"] = recency
	}
	if strings.TrimSpace(s.CAGECode) != "" {
		factors["validation_code"] = weightValidationCode
	}
	if strings.TrimSpace(s.State) != "" {
		factors["jurisdiction"] = weightJurisdiction
	}
	if match := opportunityMatch(s.NAICSCodes, m); match > 0 {
		factors["opportunity_match"] = match
	}

	total := 0
	for _, value := range factors {
		total += value
	}
	score := clampScore(total)

	return Result{
		Score:    score,
		Priority: PriorityFor(score),
		Factors:  factors,
		Version:  Version,
	}
}

// PriorityFor maps a score to its priority label.
func PriorityFor(score int) Priority {
	switch {
	case score >= highPriorityThreshold:
		return PriorityHigh
	case score >= mediumPriorityThreshold:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// Sector returns the 4-digit sector prefix of a classification code.
func Sector(code string) (string, bool) {
	code = strings.TrimSpace(code)
	if len(code) < sectorPrefixLength {
		return "", false
	}
	return code[:sectorPrefixLength], true
}

// Clamp bounds an arbitrary score to [0,100].
func Clamp(score int) int {
	return clampScore(score)
}

func primaryCode(codes []string) string {
	for _, code := range codes {
		if trimmed := strings.TrimSpace(code); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// opportunityMatch awards the exact bonus if any contractor code is an active
// opportunity code, else the sector bonus if any shares a 4-digit prefix.
func opportunityMatch(codes []string, m Market) int {
	best := 0
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if m.HasCode(code) {
			return weightExactMatch
		}
		if sector, ok := Sector(code); ok && m.HasSector(sector) {
			best = weightSectorMatch
		}
	}
	return best
}

// registrationRecency scores how recently the entity registered.
// Newly registered contractors are actively looking for work.
func registrationRecency(registered *time.Time, asOf time.Time) int {
	if registered == nil || registered.IsZero() {
		return 0
	}
	days := asOf.Sub(*registered).Hours() / 24
	switch {
	case days <= 7:
		return 15
	case days <= 30:
		return 12
	case days <= 90:
		return 8
	case days <= 180:
		return 5
	case days <= 365:
		return 3
	default:
		return 1
	}
}

func clampScore(value int) int {
	if value < 0 {
		return 0
	}
	if value > MaxScore {
		return MaxScore
	}
	return value
}
