package service

import (
	"strings"
	"time"

	"govcon_outreach_backend/internal/contractors/repository"
	"govcon_outreach_backend/internal/registry"
	"govcon_outreach_backend/internal/scoring"
	"govcon_outreach_backend/platform/phone"
	"govcon_outreach_backend/platform/validator"
)

// Skip reasons reported by Admit.
const (
	SkipMissingUEI     = "missing_uei"
	SkipNotReachable   = "no_email_or_cage"
	skipReasonAccepted = ""
)

var emailCheck = validator.New()

// Admit applies the intake filter to one registry record and, when the record
// is worth keeping, returns its normalized and scored upsert parameters.
// Records without a UEI are dropped, as are records with neither a usable
// email nor a CAGE code.
func Admit(record registry.EntityRecord, market scoring.Market, syncedAt time.Time) (repository.UpsertParams, string) {
	if !record.Valid() {
		return repository.UpsertParams{}, SkipMissingUEI
	}

	email := usableEmail(record.Email)
	cage := strings.ToUpper(strings.TrimSpace(record.CAGECode))
	if email == "" && cage == "" {
		return repository.UpsertParams{}, SkipNotReachable
	}

	codes := orderedCodes(record.PrimaryNAICS, record.NAICSCodes)

	legalName := strings.TrimSpace(record.LegalName)
	if legalName == "" {
		legalName = strings.TrimSpace(record.DBAName)
	}
	if legalName == "" {
		legalName = record.UEI
	}

	primary := ""
	if len(codes) > 0 {
		primary = codes[0]
	}

	params := repository.UpsertParams{
		UEI:              strings.ToUpper(strings.TrimSpace(record.UEI)),
		CAGECode:         cage,
		LegalName:        legalName,
		DBAName:          record.DBAName,
		Email:            email,
		ContactName:      record.ContactName,
		Phone:            phone.NormalizeE164(record.Phone),
		Website:          record.Website,
		City:             record.City,
		State:            strings.ToUpper(strings.TrimSpace(record.State)),
		NAICSCode:        primary,
		NAICSCodes:       codes,
		BusinessTypes:    record.BusinessTypes,
		RegistrationDate: record.RegistrationDate,
		ExpirationDate:   record.ExpirationDate,
		SyncedAt:         syncedAt,
	}
	return scored(params, email, market), skipReasonAccepted
}

// Rescore scores params against the email the stored row keeps when the
// registry snapshot carries none, so the stored score follows the stored row.
func Rescore(params repository.UpsertParams, storedEmail string, market scoring.Market) repository.UpsertParams {
	if params.Email != "" {
		return params
	}
	return scored(params, usableEmail(storedEmail), market)
}

func scored(params repository.UpsertParams, email string, market scoring.Market) repository.UpsertParams {
	result := scoring.Score(scoring.Snapshot{
		Email:            email,
		NAICSCodes:       params.NAICSCodes,
		BusinessTypes:    params.BusinessTypes,
		RegistrationDate: params.RegistrationDate,
		CAGECode:         params.CAGECode,
		State:            params.State,
	}, market)
	params.Score = result.Score
	params.Priority = string(result.Priority)
	return params
}

func usableEmail(raw string) string {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" || emailCheck.Var(email, "email") != nil {
		return ""
	}
	return email
}

// orderedCodes puts the primary code first and drops duplicates.
func orderedCodes(primary string, all []string) []string {
	seen := make(map[string]struct{}, len(all)+1)
	out := make([]string, 0, len(all)+1)
	for _, code := range append([]string{primary}, all...) {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}
