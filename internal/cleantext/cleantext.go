// Package cleantext normalizes transcript fragments before they are stored
// or fingerprinted.
package cleantext

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Placeholder is the text the API serves while a transcript is still being
// prepared.
const Placeholder = "Stenogramm on koostamisel"

var placeholderLower = strings.ToLower(Placeholder)

// Clean strips HTML tags and collapses runs of whitespace into single spaces.
func Clean(s string) string {
	if s == "" {
		return ""
	}
	if strings.ContainsAny(s, "<&") {
		s = stripTags(s)
	}
	return strings.Join(strings.Fields(s), " ")
}

func stripTags(s string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return doc.Text()
}

// IsPlaceholder reports whether s contains the placeholder phrase, in any case.
func IsPlaceholder(s string) bool {
	return strings.Contains(strings.ToLower(s), placeholderLower)
}

// NameKey folds a person name for case-insensitive comparison. Unlike
// SQLite's lower() it handles Estonian letters.
func NameKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
