package textutil

import (
	"strings"
	"unicode"
)

var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName makes a backend-supplied name safe to create locally.
// Path separators, colons and asterisks become dashes; other reserved and
// control characters are dropped. Names that reduce to dots are rejected with
// an empty result.
func SanitizeFileName(name string) string {
	name = fileNameReplacer.Replace(strings.TrimSpace(name))
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if strings.Trim(name, ".") == "" {
		return ""
	}
	return name
}

// WordCount counts whitespace separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
