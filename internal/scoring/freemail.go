package scoring

import "strings"

var freeMailDomains = map[string]struct{}{
	"gmail.com":      {},
	"googlemail.com": {},
	"yahoo.com":      {},
	"ymail.com":      {},
	"hotmail.com":    {},
	"outlook.com":    {},
	"live.com":       {},
	"msn.com":        {},
	"aol.com":        {},
	"icloud.com":     {},
	"me.com":         {},
	"mac.com":        {},
	"protonmail.com": {},
	"proton.me":      {},
	"gmx.com":        {},
	"mail.com":       {},
	"yandex.com":     {},
	"zoho.com":       {},
	"comcast.net":    {},
	"att.net":        {},
	"verizon.net":    {},
	"sbcglobal.net":  {},
}

// IsFreeMailDomain reports whether the address belongs to a consumer mailbox provider.
func IsFreeMailDomain(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return false
	}
	_, ok := freeMailDomains[strings.ToLower(strings.TrimSpace(email[at+1:]))]
	return ok
}
