package services

import (
	"strings"
	"unicode/utf8"
)

// cleanField trims v and enforces presence and an optional rune limit.
//
// Text is stored as the author typed it. Posts routinely quote code and
// inequalities ("a<b", "vector<int>"), so nothing here interprets markup;
// escaping is the renderer's job, and the search mirror strips HTML on its
// own copy (see searchText).
func cleanField(field, v string, maxRunes int) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", required(field)
	}
	if maxRunes > 0 && utf8.RuneCountInString(v) > maxRunes {
		return "", &ValidationError{Field: field, Reason: "is too long"}
	}
	return v, nil
}
