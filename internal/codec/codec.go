// Package codec derives the short string codes of events and builds or parses the URLs encoded into their QR codes
package codec

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf16"
)

const (
	// Alphabet holds the symbols a string code is built from
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// CodeLength is the number of symbols in a string code
	CodeLength = 6
	// URLScheme is the scheme used for event deep links
	URLScheme = "whispqr"

	eventURLPrefix = URLScheme + "://event/"
	stride         = 7
)

var (
	// ErrInvalidCode is returned when a typed code does not have the format of a string code
	ErrInvalidCode = errors.New("invalid code format: a code consists of 6 letters or digits")
	// ErrInvalidURL is returned when a scanned URL does not reference an event
	ErrInvalidURL = errors.New("invalid event URL format")
)

// Derive computes the string code for the given event ID.
// The hash runs over the UTF-16 code units of the ID and wraps like a signed 32 bit integer.
func Derive(id string) string {
	var hash int32
	for _, unit := range utf16.Encode([]rune(id)) {
		hash = hash*31 + int32(unit)
	}
	// int64, so that the absolute value of math.MinInt32 does not overflow
	abs := int64(hash)
	if abs < 0 {
		abs = -abs
	}
	code := make([]byte, CodeLength)
	for i := range code {
		code[i] = Alphabet[(abs+int64(i*stride))%int64(len(Alphabet))]
	}
	return string(code)
}

// Normalize cleans up a code typed in by a user and checks its format
func Normalize(input string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(input))
	if len(code) != CodeLength {
		return "", ErrInvalidCode
	}
	for _, c := range code {
		if !strings.ContainsRune(Alphabet, c) {
			return "", ErrInvalidCode
		}
	}
	return code, nil
}

// EventURL returns the deep link that is encoded into the QR code of an event
func EventURL(id string) string {
	return eventURLPrefix + id
}

// ParseEventURL extracts the event ID from a scanned URL.
// Besides the deep link format, HTTP(S) URLs with an "event" query parameter or the ID as last path segment
// are understood.
func ParseEventURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, eventURLPrefix) {
		if id := strings.TrimPrefix(raw, eventURLPrefix); id != "" {
			return id, nil
		}
		return "", ErrInvalidURL
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return "", ErrInvalidURL
	}
	if id := u.Query().Get("event"); id != "" {
		return id, nil
	}
	segments := strings.Split(u.Path, "/")
	if id := segments[len(segments)-1]; id != "" {
		return id, nil
	}
	return "", ErrInvalidURL
}

// ShareText builds the invitation text a host can send to guests
func ShareText(eventName, id string) string {
	return fmt.Sprintf(`Join "%s" on whispqr! Scan this QR code or visit: %s`, eventName, EventURL(id))
}
