// Package tracklink builds and verifies the signed tracking URLs embedded in
// outreach messages.
package tracklink

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Paths of the public tracking endpoints.
const (
	OpenPath        = "/api/v1/track/open"
	ClickPath       = "/api/v1/track/click"
	UnsubscribePath = "/api/v1/track/unsubscribe"
)

// Query parameter names.
const (
	ParamMessageID    = "message_id"
	ParamContractorID = "contractor_id"
	ParamURL          = "url"
	ParamSignature    = "sig"
)

// Signer creates tracking URLs against the public API base URL.
type Signer struct {
	secret  []byte
	baseURL string
}

// NewSigner creates a signer. baseURL is the public API origin.
func NewSigner(secret, baseURL string) *Signer {
	return &Signer{secret: []byte(secret), baseURL: strings.TrimRight(baseURL, "/")}
}

// Sign returns the hex HMAC-SHA256 over the message id, contractor id and
// target. Unsubscribe and open links sign an empty target.
func (s *Signer) Sign(messageID, contractorID uuid.UUID, target string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(messageID.String()))
	mac.Write([]byte{0})
	mac.Write([]byte(contractorID.String()))
	mac.Write([]byte{0})
	mac.Write([]byte(target))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks sig in constant time.
func (s *Signer) Verify(messageID, contractorID uuid.UUID, target, sig string) bool {
	got, err := hex.DecodeString(sig)
	if err != nil || len(got) != sha256.Size {
		return false
	}
	want, _ := hex.DecodeString(s.Sign(messageID, contractorID, target))
	return hmac.Equal(got, want)
}

// ClickURL wraps target in a signed redirect.
func (s *Signer) ClickURL(messageID, contractorID uuid.UUID, target string) string {
	q := url.Values{}
	q.Set(ParamMessageID, messageID.String())
	q.Set(ParamContractorID, contractorID.String())
	q.Set(ParamURL, target)
	q.Set(ParamSignature, s.Sign(messageID, contractorID, target))
	return s.baseURL + ClickPath + "?" + q.Encode()
}

// OpenURL is the 1x1 pixel source.
func (s *Signer) OpenURL(messageID, contractorID uuid.UUID) string {
	return s.build(OpenPath, messageID, contractorID)
}

// UnsubscribeURL is the one-click unsubscribe link.
func (s *Signer) UnsubscribeURL(messageID, contractorID uuid.UUID) string {
	return s.build(UnsubscribePath, messageID, contractorID)
}

func (s *Signer) build(path string, messageID, contractorID uuid.UUID) string {
	q := url.Values{}
	q.Set(ParamMessageID, messageID.String())
	q.Set(ParamContractorID, contractorID.String())
	q.Set(ParamSignature, s.Sign(messageID, contractorID, ""))
	return s.baseURL + path + "?" + q.Encode()
}

// IsTrackable reports whether raw is an absolute http(s) URL that should be
// wrapped. mailto, tel and fragment links are left alone, as are links that
// already point at the tracking endpoints.
func (s *Signer) IsTrackable(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return !strings.HasPrefix(raw, s.baseURL+"/api/v1/track/")
}
