package service

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"govcon_outreach_backend/internal/tracklink"
)

var bareURL = regexp.MustCompile(`https?://[^\s<>"')\]]+`)

// rewriteHTML replaces every trackable anchor href with a signed click URL.
// The document structure is otherwise preserved.
func rewriteHTML(body string, signer *tracklink.Signer, messageID, contractorID uuid.UUID) (string, error) {
	nodes, err := html.ParseFragment(strings.NewReader(body), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return "", fmt.Errorf("parse message html: %w", err)
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			for i, attr := range n.Attr {
				if attr.Key == "href" && signer.IsTrackable(attr.Val) {
					n.Attr[i].Val = signer.ClickURL(messageID, contractorID, strings.TrimSpace(attr.Val))
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	var buf bytes.Buffer
	for _, n := range nodes {
		walk(n)
		if err := html.Render(&buf, n); err != nil {
			return "", fmt.Errorf("render message html: %w", err)
		}
	}
	return buf.String(), nil
}

// rewriteText replaces bare URLs in a plain-text body.
func rewriteText(body string, signer *tracklink.Signer, messageID, contractorID uuid.UUID) string {
	return bareURL.ReplaceAllStringFunc(body, func(raw string) string {
		trimmed := strings.TrimRight(raw, ".,;:!?")
		if !signer.IsTrackable(trimmed) {
			return raw
		}
		return signer.ClickURL(messageID, contractorID, trimmed) + raw[len(trimmed):]
	})
}

// trackingFooter is the unsubscribe notice plus the open pixel.
func trackingFooter(signer *tracklink.Signer, messageID, contractorID uuid.UUID) template.HTML {
	unsubscribe := template.HTMLEscapeString(signer.UnsubscribeURL(messageID, contractorID))
	pixel := template.HTMLEscapeString(signer.OpenURL(messageID, contractorID))
	return template.HTML(fmt.Sprintf(
		`You are receiving this because your business is registered as a federal contractor. `+
			`<a href="%s">Unsubscribe</a>.<img src="%s" width="1" height="1" alt="" style="display:block;border:0;">`,
		unsubscribe, pixel,
	))
}

func textFooter(signer *tracklink.Signer, messageID, contractorID uuid.UUID) string {
	return "\n\n--\nUnsubscribe: " + signer.UnsubscribeURL(messageID, contractorID)
}
