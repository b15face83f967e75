// Package textutil holds the pure text helpers shared by collection, dedup and enrichment.
package textutil

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// WordsPerMinute is the reading speed used by ReadTime.
const WordsPerMinute = 200

// NormalizeWhitespace NFC-normalizes s, collapses whitespace runs to a single space and trims.
func NormalizeWhitespace(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFC.String(s)
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// Fold returns a case-folded, whitespace-normalized form suitable for comparisons.
// A Caser is stateful, so one is built per call.
func Fold(s string) string {
	return cases.Fold().String(NormalizeWhitespace(s))
}

// ContainsAny reports whether any non-blank keyword occurs in text, ignoring case.
func ContainsAny(text string, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	text = Fold(text)
	for _, k := range keywords {
		k = Fold(k)
		if k == "" {
			continue
		}
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// ReadTime estimates reading minutes for plain text. Never below one minute.
func ReadTime(text string) int {
	words := len(strings.Fields(text))
	minutes := int(math.Ceil(float64(words) / WordsPerMinute))
	if minutes < 1 {
		return 1
	}
	return minutes
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// NormalizeURL trims the link, lower-cases scheme and host, drops the fragment
// and a trailing slash. Unparseable input is only trimmed.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(raw, "/")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	out := u.String()
	return strings.TrimSuffix(out, "/")
}

// ContentHash is the dedup key: sha256 over the normalized URL, title and stripped body.
// Title and body are case-folded and whitespace-normalized so cosmetic feed
// differences collapse to the same key.
func ContentHash(link, title, body string) string {
	h := sha256.New()
	h.Write([]byte(NormalizeURL(link)))
	h.Write([]byte{'\n'})
	h.Write([]byte(Fold(title)))
	h.Write([]byte{'\n'})
	h.Write([]byte(Fold(body)))
	return hex.EncodeToString(h.Sum(nil))
}
