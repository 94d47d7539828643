package usecase

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Velocity-Developer/newads/internal/domain"
)

var (
	isoDateExpr = regexp.MustCompile(`^\d{4}-\d{1,2}-\d{1,2}(?:[ T]\d{1,2}:\d{2}(?::\d{2})?)?$`)
	usDateExpr  = regexp.MustCompile(`^\d{1,2}/\d{1,2}/(?:\d{4}|\d{2})(?:\s+\d{1,2}:\d{2}(?::\d{2})?\s*(?:[AaPp][Mm])?)?$`)
)

// IsValidSearchTerm reports whether a raw candidate can be stored as a Term.
func IsValidSearchTerm(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || utf8.RuneCountInString(s) > domain.MaxTermLength {
		return false
	}
	if isoDateExpr.MatchString(s) || usDateExpr.MatchString(s) {
		return false
	}
	return strings.IndexFunc(s, isLatinLetter) >= 0
}

// isLatinLetter accepts basic and extended Latin letters only.
func isLatinLetter(r rune) bool {
	return unicode.In(r, unicode.Latin)
}
