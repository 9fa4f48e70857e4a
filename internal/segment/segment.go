// Package segment splits a bill's plain text into its labeled divisions.
package segment

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// OtherMatters is the reserved title for a bill's miscellaneous division.
const OtherMatters = "OTHER MATTERS"

// A heading's title may not contain APPROPRIATIONS, otherwise the match runs
// on into the enacting clause ("...APPROPRIATIONS ACT, 2024").
const headingPattern = `^\s*DIVISION\s+([A-Z])\s*--\s*(?:(` + OtherMatters + `)|((?:(?!APPROPRIATIONS).)+))`

var (
	noteMarker = regexp.MustCompile(`<<NOTE:[^>]+>>`)
	whitespace = regexp.MustCompile(`\s+`)
	blankLine  = regexp.MustCompile(`\n[ \t\r]*\n`)
)

// Heading is one matched division header.
type Heading struct {
	Letter string
	Title  string
	Start  int // rune offset in the cleaned text
	End    int // start of the next heading match, or -1 at end of text
}

// Segment is one division's text span.
type Segment struct {
	Label  string // "{source} - Division {X} - {title}"
	Letter string
	Title  string
	Text   string
}

// Segmenter holds the compiled heading pattern. It is safe for concurrent use.
type Segmenter struct {
	re *regexp2.Regexp
}

// New compiles the heading pattern. timeout bounds a single match attempt;
// zero disables the bound.
func New(timeout time.Duration) *Segmenter {
	re := regexp2.MustCompile(headingPattern, regexp2.IgnoreCase|regexp2.Multiline|regexp2.Singleline)
	if timeout > 0 {
		re.MatchTimeout = timeout
	}
	return &Segmenter{re: re}
}

// Clean removes editorial note markers.
func Clean(text string) string {
	return noteMarker.ReplaceAllString(text, "")
}

// Headings returns one heading per division letter, ordered by position.
// When a letter is announced more than once the last announcement wins. A
// heading's span ends at the next match of any heading, kept or not.
func (s *Segmenter) Headings(text string) ([]Heading, error) {
	var all []Heading

	m, err := s.re.FindStringMatch(text)
	for m != nil && err == nil {
		h := Heading{
			Letter: strings.ToUpper(m.GroupByNumber(1).String()),
			Start:  m.Index,
			End:    -1,
		}
		if other := m.GroupByNumber(2); other.Length > 0 {
			h.Title = OtherMatters
		} else {
			h.Title = normalizeTitle(m.GroupByNumber(3).String())
		}
		if n := len(all); n > 0 {
			all[n-1].End = h.Start
		}
		all = append(all, h)
		m, err = s.re.FindNextMatch(m)
	}
	if err != nil {
		return nil, fmt.Errorf("scan division headings: %w", err)
	}

	byLetter := make(map[string]Heading, len(all))
	for _, h := range all {
		byLetter[h.Letter] = h
	}
	out := make([]Heading, 0, len(byLetter))
	for _, h := range byLetter {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, nil
}

// Split cuts text into segments keyed by label. A document with no
// recognizable heading yields an empty map and no error.
func (s *Segmenter) Split(text, source string) (map[string]Segment, error) {
	text = Clean(text)
	headings, err := s.Headings(text)
	if err != nil {
		return nil, err
	}

	out := make(map[string]Segment, len(headings))
	if len(headings) == 0 {
		return out, nil
	}

	runes := []rune(text)
	for _, h := range headings {
		end := h.End
		if end < 0 {
			end = len(runes)
		}
		label := Label(source, h.Letter, h.Title)
		out[label] = Segment{
			Label:  label,
			Letter: h.Letter,
			Title:  h.Title,
			Text:   strings.TrimSpace(string(runes[h.Start:end])),
		}
	}
	return out, nil
}

// Ordered returns segments sorted by label for deterministic iteration.
func Ordered(segments map[string]Segment) []Segment {
	out := make([]Segment, 0, len(segments))
	for _, seg := range segments {
		out = append(out, seg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// Label builds the segment label for a division of source.
func Label(source, letter, title string) string {
	return fmt.Sprintf("%s - Division %s - %s", source, letter, title)
}

// The title group is dot-all, so a heading wrapped over several lines is
// kept whole. A heading never spans a blank line.
func normalizeTitle(raw string) string {
	if loc := blankLine.FindStringIndex(raw); loc != nil {
		raw = raw[:loc[0]]
	}
	return strings.TrimSpace(whitespace.ReplaceAllString(raw, " "))
}
