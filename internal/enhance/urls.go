// Package enhance enriches the newest user message with the content of the
// web pages it links to.
package enhance

import (
	"regexp"
	"strings"
)

// urlPattern matches, in order of preference: explicit http(s) URLs, bare
// www. hosts, and bare domains with an alphabetic TLD of two or more letters.
var urlPattern = regexp.MustCompile(
	`(?i)\bhttps?://[^\s<>"'` + "`" + `]+` +
		`|\bwww\.[^\s<>"'` + "`" + `]+` +
		`|\b[a-z0-9][a-z0-9-]*(?:\.[a-z0-9-]+)*\.[a-z]{2,}(?:/[^\s<>"'` + "`" + `]*)?`,
)

const trailingPunct = `.,;:!?)]}'"`

// ExtractURLs returns the URLs found in text, deduplicated in order of first
// appearance. Bare hosts are given an https:// scheme. Domains that are part
// of an email address are skipped.
func ExtractURLs(text string) []string {
	var (
		out  []string
		seen = make(map[string]struct{})
	)

	for _, loc := range urlPattern.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		match := text[start:end]
		explicit := hasScheme(match)

		if !explicit && isEmailPart(text, start, end) {
			continue
		}

		match = strings.TrimRight(match, trailingPunct)
		if match == "" || (explicit && schemeOnly(match)) {
			continue
		}
		if !explicit {
			match = "https://" + match
		}

		if _, dup := seen[match]; dup {
			continue
		}
		seen[match] = struct{}{}
		out = append(out, match)
	}
	return out
}

func hasScheme(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// schemeOnly reports whether trimming left nothing after "://".
func schemeOnly(s string) bool {
	i := strings.Index(s, "://")
	return i >= 0 && i+3 == len(s)
}

// isEmailPart reports whether text[start:end] sits on either side of an @.
func isEmailPart(text string, start, end int) bool {
	if start > 0 && text[start-1] == '@' {
		return true
	}
	return end < len(text) && text[end] == '@'
}
