// Package flair maps trade counts onto subreddit flair. Tracked flair text
// carries "Trades: N"; subreddit flair templates carry a range "Trades: N-M"
// and the template whose range contains the count is assigned.
package flair

import (
	"regexp"
	"strconv"
)

var (
	countPattern = regexp.MustCompile(`Trades: (\d+)`)
	rangePattern = regexp.MustCompile(`Trades: ((\d+)-(\d+))`)
)

// ParseCount extracts the trade count from flair text. ok is false for empty
// or custom (untracked) flair.
func ParseCount(text string) (count int, ok bool) {
	m := countPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Tracked reports whether flair text is one the bot manages. Empty flair is
// tracked (the user just has no trades yet); anything not matching the
// pattern is a custom flair the bot must not touch.
func Tracked(text string) bool {
	if text == "" {
		return true
	}
	_, ok := ParseCount(text)
	return ok
}

// Range is the count span a flair template covers.
type Range struct {
	Min, Max int
}

// ParseRange extracts the "Trades: N-M" range from template text.
func ParseRange(templateText string) (Range, bool) {
	m := rangePattern.FindStringSubmatch(templateText)
	if m == nil {
		return Range{}, false
	}
	min, err1 := strconv.Atoi(m[2])
	max, err2 := strconv.Atoi(m[3])
	if err1 != nil || err2 != nil {
		return Range{}, false
	}
	return Range{Min: min, Max: max}, true
}

// FormatText substitutes count into a template's range placeholder, turning
// "… Trades: 0-49" into "… Trades: 7".
func FormatText(templateText string, count int) string {
	loc := rangePattern.FindStringSubmatchIndex(templateText)
	if loc == nil {
		return templateText
	}
	// Group 1 spans the "N-M" part.
	start, end := loc[2], loc[3]
	return templateText[:start] + strconv.Itoa(count) + templateText[end:]
}
