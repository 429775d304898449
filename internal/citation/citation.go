// Package citation recovers the quoted problem from a threaded reply.
//
// Chat clients render a reply as a fallback block that starts with the quoted
// author, e.g. "> <@alice:example.org> Printer jams\nReplace the fuser". The
// first line after the attribution is taken as the problem subject and the
// rest as the reply body. A quoted problem that itself spans several lines
// therefore yields a wrong subject; that is a known limit of the format.
package citation

import (
	"errors"
	"regexp"
	"strings"
)

// Marker opens every threaded reply.
const Marker = "> <"

// SubjectMaxLen is the subject length the tracking service stores.
const SubjectMaxLen = 75

var (
	ErrNotQuote     = errors.New("message is not a threaded reply")
	ErrEmptySubject = errors.New("threaded reply has no quoted subject")
)

var attributionPattern = regexp.MustCompile(`> <.*>`)

type Quote struct {
	Subject string
	Body    string
}

func IsQuote(text string) bool {
	return strings.HasPrefix(text, Marker)
}

func Parse(text string) (Quote, error) {
	if !IsQuote(text) {
		return Quote{}, ErrNotQuote
	}
	stripped := strings.TrimSpace(attributionPattern.ReplaceAllString(text, ""))
	lines := strings.Split(stripped, "\n")
	subject := Truncate(lines[0], SubjectMaxLen)
	if strings.TrimSpace(subject) == "" {
		return Quote{}, ErrEmptySubject
	}
	return Quote{
		Subject: subject,
		Body:    strings.TrimSpace(strings.Join(lines[1:], "\n")),
	}, nil
}

// Truncate cuts s to at most n characters.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
