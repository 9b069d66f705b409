// Package tag extracts hashtag topics from post text.
//
// A topic is any run of ASCII letters, digits, or underscores immediately
// following a '#'. Matching is case-sensitive and topics have no length cap;
// both are deliberate, not omissions. Duplicate occurrences within one text
// collapse to a single topic.
package tag

import (
	"regexp"
	"sort"
)

var tagPattern = regexp.MustCompile(`#[0-9A-Za-z_]+`)

// Extract returns the distinct topics in text, leading '#' stripped, in
// ascending lexicographic order. It never returns nil for valid input with
// no tags; it returns an empty slice.
func Extract(text string) []string {
	matches := tagPattern.FindAllString(text, -1)
	seen := make(map[string]struct{}, len(matches))
	topics := make([]string, 0, len(matches))
	for _, m := range matches {
		t := m[1:]
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}
