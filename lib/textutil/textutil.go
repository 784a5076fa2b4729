package textutil

import (
	"regexp"
	"strings"
)

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func CollapseWhitespace(s string) string {
	s = strings.Trim(s, " \t\n")
	return innerWhitespace.ReplaceAllString(s, " ")
}

var trailingParen = regexp.MustCompile(`\(([^)]+)\)$`)

// splits a trailing parenthetical suffix off a display name,
// e.g. "Jane Doe (Math Teacher)" -> ("Jane Doe", "Math Teacher")
func SplitTrailingParen(s string) (string, string) {
	s = strings.TrimSpace(s)
	groups := trailingParen.FindStringSubmatch(s)
	if len(groups) < 2 {
		return s, ""
	}
	idx := strings.LastIndex(s, "(")
	return strings.TrimSpace(s[:idx]), groups[1]
}

// strips every occurrence of the given fragments from s
func StripFragments(s string, fragments []*regexp.Regexp) string {
	for _, f := range fragments {
		s = f.ReplaceAllString(s, "")
	}
	return strings.TrimSpace(s)
}
