package normalize

import (
	"regexp"
	"strings"

	"github.com/emersion/go-message/mail"
)

// placeholderDomain is used for senders whose From header carries no
// address at all.
const placeholderDomain = "example.com"

var nonAlnumRE = regexp.MustCompile(`[^a-z0-9]`)

func sender(h mail.Header) (name, address string, err error) {
	from, err := h.Text("From")
	if err != nil {
		from = h.Get("From")
	}
	// Mailman's pipermail archives spell addresses "user at example.com".
	from = strings.ReplaceAll(unfold(from), " at ", "@")

	name, address = parseAddress(from)
	name = strings.TrimSpace(name)
	address = strings.TrimSpace(address)
	if !isASCII(address) {
		return "", "", invalid("non-ascii sender address %q", address)
	}
	if name == "" {
		name = address
	}
	if address == "" {
		local := nonAlnumRE.ReplaceAllString(strings.ToLower(name), "")
		if local == "" {
			local = "unknown"
		}
		address = local + "@" + placeholderDomain
	}
	return name, address, nil
}

// parseAddress splits a From value into display name and address. It
// accepts RFC 5322 forms and falls back to a loose scan for the address
// token in malformed headers.
func parseAddress(s string) (name, address string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ""
	}
	if addr, err := mail.ParseAddress(s); err == nil {
		return addr.Name, addr.Address
	}

	if i := strings.LastIndex(s, "<"); i >= 0 {
		if j := strings.Index(s[i:], ">"); j > 0 {
			return strings.Trim(strings.TrimSpace(s[:i]), `"`), s[i+1 : i+j]
		}
	}

	var rest []string
	for _, field := range strings.Fields(s) {
		if address == "" && strings.Contains(field, "@") {
			address = strings.Trim(field, "<>,;")
			continue
		}
		rest = append(rest, field)
	}
	name = strings.Trim(strings.Join(rest, " "), `"()`)
	return name, address
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

func unfold(s string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}
