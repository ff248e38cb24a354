package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"govcon_outreach_backend/platform/validator"
)

// Targeting is the operator-maintained targeting file: which classification
// codes the sync jobs pull by default and which named outreach templates exist.
type Targeting struct {
	Codes     []string                   `yaml:"codes"`
	Templates map[string]MessageTemplate `yaml:"templates"`
}

// MessageTemplate is a named outreach message.
type MessageTemplate struct {
	Subject string `yaml:"subject"`
	HTML    string `yaml:"html"`
	Text    string `yaml:"text"`
}

// DefaultTargeting is used when no targeting file is configured.
func DefaultTargeting() Targeting {
	return Targeting{
		Codes: []string{"541511", "541512", "541519", "541330", "561210"},
		Templates: map[string]MessageTemplate{
			"intro": {
				Subject: "{{.ContractorName}}: {{.OpportunityCount}} open federal opportunities match your NAICS",
				HTML: `<p>Hello {{.ContactName}},</p>
<p>We found open opportunities matching {{.ContractorName}}'s registered NAICS code {{.NAICSCode}}.</p>
{{if .Opportunity}}<p><a href="{{.Opportunity.Link}}">{{.Opportunity.Title}}</a> from {{.Opportunity.Agency}}{{if .Opportunity.Deadline}}, due {{.Opportunity.Deadline}}{{end}}.</p>{{end}}
<p>Start your free trial with promo code <strong>{{.PromoCode}}</strong>: <a href="{{.SignupURL}}">{{.SignupURL}}</a></p>`,
				Text: `Hello {{.ContactName}},

We found open opportunities matching {{.ContractorName}}'s registered NAICS code {{.NAICSCode}}.
{{if .Opportunity}}{{.Opportunity.Title}} ({{.Opportunity.Agency}}): {{.Opportunity.Link}}
{{end}}
Start your free trial with promo code {{.PromoCode}}: {{.SignupURL}}`,
			},
			"follow_up": {
				Subject: "Following up: opportunities for {{.ContractorName}}",
				HTML:    `<p>Hello {{.ContactName}},</p><p>A quick reminder that new opportunities for NAICS {{.NAICSCode}} are waiting. Your promo code {{.PromoCode}} is still valid: <a href="{{.SignupURL}}">{{.SignupURL}}</a></p>`,
				Text:    "Hello {{.ContactName}},\n\nA quick reminder that new opportunities for NAICS {{.NAICSCode}} are waiting. Your promo code {{.PromoCode}} is still valid: {{.SignupURL}}",
			},
		},
	}
}

// LoadTargeting reads the YAML targeting file at path, falling back to the
// defaults for an empty path. Templates present in the file replace defaults
// of the same name.
func LoadTargeting(path string) (Targeting, error) {
	targeting := DefaultTargeting()
	if strings.TrimSpace(path) == "" {
		return targeting, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Targeting{}, fmt.Errorf("read targeting file: %w", err)
	}

	var parsed Targeting
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return Targeting{}, fmt.Errorf("parse targeting file: %w", err)
	}

	for _, code := range parsed.Codes {
		if !validator.IsNAICS(code) {
			return Targeting{}, fmt.Errorf("targeting code %q is not a NAICS code", code)
		}
	}
	if len(parsed.Codes) > 0 {
		targeting.Codes = parsed.Codes
	}
	for name, tmpl := range parsed.Templates {
		if strings.TrimSpace(tmpl.Subject) == "" {
			return Targeting{}, fmt.Errorf("targeting template %q has no subject", name)
		}
		targeting.Templates[name] = tmpl
	}
	return targeting, nil
}
