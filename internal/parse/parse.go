// Package parse extracts structure from free-form language-model output.
// Model formatting is not a reliable contract, so every function here is
// tolerant: malformed or missing structure yields empty results, never an
// error.
package parse

import "strings"

// Bullets returns the items of a "- " prefixed list, one per line, in order.
// Lines without the prefix are ignored.
func Bullets(text string) []string {
	var items []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "- ") {
			item := strings.TrimSpace(line[2:])
			if item != "" {
				items = append(items, item)
			}
		}
	}
	return items
}

// Sections splits text into "- " lists grouped under the given headers.
// A header matches when a trimmed line starts with it. Items before the
// first header, and headers that never appear, yield no entries.
func Sections(text string, headers ...string) map[string][]string {
	sections := make(map[string][]string, len(headers))
	current := ""
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		matched := false
		for _, h := range headers {
			if strings.HasPrefix(line, h) {
				current = h
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		if current != "" && strings.HasPrefix(line, "- ") {
			item := strings.TrimSpace(line[2:])
			if item != "" {
				sections[current] = append(sections[current], item)
			}
		}
	}
	return sections
}
