package normalize

import (
	"crypto/sha1"
	"encoding/base32"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/emersion/go-message/mail"
)

// maxIDLength is the longest message id kept; longer ids are cut so that
// stored ids and references to them truncate identically.
const maxIDLength = 254

var inBracketsRE = regexp.MustCompile(`^[^<]*<([^>]+)>`)

// MessageIDHash returns the stable hash of a message id: the base32
// encoding of its SHA-1 digest. It is used in archive URLs and as the
// identifier of threads started by that message.
func MessageIDHash(messageID string) string {
	sum := sha1.Sum([]byte(unquote(messageID)))
	return base32.StdEncoding.EncodeToString(sum[:])
}

func messageID(h mail.Header) (string, error) {
	raw := strings.TrimSpace(h.Get("Message-Id"))
	if raw == "" {
		return "", invalid("no Message-Id header")
	}
	id := unquote(raw)
	if id == "" {
		return "", invalid("empty Message-Id header")
	}
	return truncateID(id), nil
}

// reference returns the id of the message this one answers: In-Reply-To
// when present, else the last entry of References.
func reference(h mail.Header) *string {
	ref := strings.TrimSpace(h.Get("In-Reply-To"))
	if ref == "" {
		refs := strings.Fields(h.Get("References"))
		if len(refs) == 0 {
			return nil
		}
		ref = refs[len(refs)-1]
	}
	if strings.ContainsAny(ref, "<>") {
		m := inBracketsRE.FindStringSubmatch(ref)
		if m == nil {
			return nil
		}
		ref = m[1]
	}
	ref = truncateID(ref)
	return &ref
}

func unquote(s string) string {
	if len(s) > 1 {
		if s[0] == '"' && s[len(s)-1] == '"' {
			s = strings.ReplaceAll(s[1:len(s)-1], `\\`, `\`)
			return strings.ReplaceAll(s, `\"`, `"`)
		}
		if s[0] == '<' && s[len(s)-1] == '>' {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func truncateID(id string) string {
	if utf8.RuneCountInString(id) <= maxIDLength {
		return id
	}
	return truncateRunes(id, maxIDLength)
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
