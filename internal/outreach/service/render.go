package service

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"govcon_outreach_backend/internal/outreach/repository"
	"govcon_outreach_backend/platform/config"
	"govcon_outreach_backend/platform/sanitize"
)

// OpportunityData is the matched notice exposed to templates.
type OpportunityData struct {
	NoticeID string
	Title    string
	Agency   string
	Link     string
	Deadline string
}

// MessageData is the template context for one recipient.
type MessageData struct {
	ContractorName   string
	ContactName      string
	NAICSCode        string
	State            string
	PromoCode        string
	SignupURL        string
	OpportunityCount int
	Opportunity      *OpportunityData
}

// compiledTemplate is a parsed message template.
type compiledTemplate struct {
	name    string
	subject *texttemplate.Template
	html    *htmltemplate.Template
	text    *texttemplate.Template
}

type renderedMessage struct {
	Subject string
	HTML    string
	Text    string
}

// Legal suffixes that stay upper case after title casing.
var upperSuffixes = map[string]string{
	"Llc":  "LLC",
	"Lp":   "LP",
	"Llp":  "LLP",
	"Pllc": "PLLC",
	"Usa":  "USA",
	"Dba":  "DBA",
}

// compile parses a message template. The text body is optional; when absent
// it is derived from the rendered HTML.
func compile(name string, t config.MessageTemplate) (*compiledTemplate, error) {
	if strings.TrimSpace(t.Subject) == "" || strings.TrimSpace(t.HTML) == "" {
		return nil, fmt.Errorf("template %q needs a subject and an html body", name)
	}
	subject, err := texttemplate.New(name + ".subject").Option("missingkey=zero").Parse(t.Subject)
	if err != nil {
		return nil, fmt.Errorf("parse subject of %q: %w", name, err)
	}
	html, err := htmltemplate.New(name + ".html").Option("missingkey=zero").Parse(t.HTML)
	if err != nil {
		return nil, fmt.Errorf("parse html of %q: %w", name, err)
	}
	c := &compiledTemplate{name: name, subject: subject, html: html}
	if strings.TrimSpace(t.Text) != "" {
		text, err := texttemplate.New(name + ".text").Option("missingkey=zero").Parse(t.Text)
		if err != nil {
			return nil, fmt.Errorf("parse text of %q: %w", name, err)
		}
		c.text = text
	}
	return c, nil
}

func (c *compiledTemplate) render(data MessageData) (renderedMessage, error) {
	var subject, html, text bytes.Buffer
	if err := c.subject.Execute(&subject, data); err != nil {
		return renderedMessage{}, fmt.Errorf("render subject: %w", err)
	}
	if err := c.html.Execute(&html, data); err != nil {
		return renderedMessage{}, fmt.Errorf("render html: %w", err)
	}
	if c.text != nil {
		if err := c.text.Execute(&text, data); err != nil {
			return renderedMessage{}, fmt.Errorf("render text: %w", err)
		}
	} else {
		text.WriteString(sanitize.HTMLToText(html.String()))
	}
	return renderedMessage{
		Subject: strings.Join(strings.Fields(subject.String()), " "),
		HTML:    html.String(),
		Text:    strings.TrimSpace(text.String()),
	}, nil
}

// buildMessageData maps a target onto the template context.
func buildMessageData(t repository.Target, signupURL string) MessageData {
	name := t.LegalName
	if t.DBAName != nil && strings.TrimSpace(*t.DBAName) != "" {
		name = *t.DBAName
	}
	contact := "there"
	if t.ContactName != nil && strings.TrimSpace(*t.ContactName) != "" {
		contact = displayName(strings.Fields(*t.ContactName)[0])
	}

	data := MessageData{
		ContractorName:   displayName(name),
		ContactName:      contact,
		NAICSCode:        deref(t.NAICSCode),
		State:            deref(t.State),
		PromoCode:        deref(t.PromoCode),
		SignupURL:        signupURL,
		OpportunityCount: t.MatchCount,
	}
	if t.NoticeID != "" {
		data.Opportunity = &OpportunityData{
			NoticeID: t.NoticeID,
			Title:    t.OpportunityTitle,
			Agency:   displayName(deref(t.Agency)),
			Link:     deref(t.Link),
		}
		if t.ResponseDeadline != nil {
			data.Opportunity.Deadline = t.ResponseDeadline.Format("January 2, 2006")
		}
	}
	return data
}

// displayName title-cases registry names, which arrive upper case, while
// keeping legal suffixes readable.
func displayName(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if raw != strings.ToUpper(raw) {
		return raw
	}
	// A Caser keeps state, so each call gets its own.
	words := strings.Fields(cases.Title(language.AmericanEnglish).String(strings.ToLower(raw)))
	for i, w := range words {
		trimmed := strings.TrimRight(w, ",")
		if fixed, ok := upperSuffixes[trimmed]; ok {
			words[i] = fixed + w[len(trimmed):]
		}
	}
	return strings.Join(words, " ")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
