package segment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bill = `TABLE OF CONTENTS
DIVISION A--DEPARTMENT OF DEFENSE APPROPRIATIONS ACT, 2024
DIVISION B--FINANCIAL SERVICES AND GENERAL GOVERNMENT APPROPRIATIONS ACT, 2024

DIVISION A--DEPARTMENT OF DEFENSE APPROPRIATIONS ACT, 2024
For military personnel, $1,000,000.<<NOTE: Deadline.>>

DIVISION B--FINANCIAL SERVICES AND GENERAL
    GOVERNMENT APPROPRIATIONS ACT, 2024
For the Treasury, $2,000,000.

DIVISION G--OTHER MATTERS
Sec. 101. Extensions.
`

func TestSplitBill(t *testing.T) {
	s := New(0)
	segs, err := s.Split(bill, "Further.html")
	require.NoError(t, err)
	require.Len(t, segs, 3)

	a, ok := segs["Further.html - Division A - DEPARTMENT OF DEFENSE"]
	require.True(t, ok, "labels: %v", keys(segs))
	assert.True(t, strings.HasPrefix(a.Text, "DIVISION A--DEPARTMENT OF DEFENSE"))
	assert.Contains(t, a.Text, "$1,000,000.")
	assert.NotContains(t, a.Text, "<<NOTE")
	assert.NotContains(t, a.Text, "Treasury")

	b, ok := segs["Further.html - Division B - FINANCIAL SERVICES AND GENERAL GOVERNMENT"]
	require.True(t, ok, "labels: %v", keys(segs))
	assert.Contains(t, b.Text, "$2,000,000.")
	assert.NotContains(t, b.Text, "OTHER MATTERS")

	g, ok := segs["Further.html - Division G - OTHER MATTERS"]
	require.True(t, ok, "labels: %v", keys(segs))
	assert.Equal(t, "DIVISION G--OTHER MATTERS\nSec. 101. Extensions.", g.Text)
}

func TestHeadingsLastOccurrenceWins(t *testing.T) {
	s := New(0)
	hs, err := s.Headings(Clean(bill))
	require.NoError(t, err)
	require.Len(t, hs, 3)

	assert.Equal(t, []string{"A", "B", "G"}, []string{hs[0].Letter, hs[1].Letter, hs[2].Letter})
	// The table-of-contents announcement of A is not the one kept.
	assert.Greater(t, hs[0].Start, strings.Index(bill, "TABLE OF CONTENTS")+len("TABLE OF CONTENTS\n"))
	assert.Less(t, hs[0].Start, hs[1].Start)
}

func TestTitleExcludesAppropriationsMarker(t *testing.T) {
	s := New(0)
	hs, err := s.Headings("DIVISION C--DEPARTMENT OF HOMELAND SECURITY APPROPRIATIONS ACT, 2024\n")
	require.NoError(t, err)
	require.Len(t, hs, 1)
	assert.Equal(t, "DEPARTMENT OF HOMELAND SECURITY", hs[0].Title)
}

func TestHeadingIsCaseInsensitive(t *testing.T) {
	s := New(0)
	hs, err := s.Headings("  division e--Legislative Branch Appropriations Act\n")
	require.NoError(t, err)
	require.Len(t, hs, 1)
	assert.Equal(t, "E", hs[0].Letter)
	assert.Equal(t, "Legislative Branch", hs[0].Title)
}

func TestSpanEndsAtNextHeadingMatch(t *testing.T) {
	text := "DIVISION A--ALPHA APPROPRIATIONS\nalpha body\n" +
		"DIVISION B--BETA APPROPRIATIONS\nbeta toc\n" +
		"DIVISION B--BETA APPROPRIATIONS\nbeta body\n"

	s := New(0)
	segs, err := s.Split(text, "bill.txt")
	require.NoError(t, err)
	require.Len(t, segs, 2)

	a := segs["bill.txt - Division A - ALPHA"]
	assert.Equal(t, "DIVISION A--ALPHA APPROPRIATIONS\nalpha body", a.Text)

	b := segs["bill.txt - Division B - BETA"]
	assert.Equal(t, "DIVISION B--BETA APPROPRIATIONS\nbeta body", b.Text)
}

func TestSplitNoHeadings(t *testing.T) {
	s := New(0)
	segs, err := s.Split("An Act making appropriations.\nNo divisions here.", "plain.txt")
	require.NoError(t, err)
	assert.NotNil(t, segs)
	assert.Empty(t, segs)
}

func TestSplitIsDeterministic(t *testing.T) {
	s := New(0)
	first, err := s.Split(bill, "Further.html")
	require.NoError(t, err)
	second, err := s.Split(bill, "Further.html")
	require.NoError(t, err)
	assert.Equal(t, Ordered(first), Ordered(second))
}

func TestSplitHandlesMultibyteText(t *testing.T) {
	text := "Préambule — résumé.\nDIVISION A--DÉFENSE APPROPRIATIONS ACT\nFonds € 5.\nDIVISION B--OTHER MATTERS\nFin."
	s := New(0)
	segs, err := s.Split(text, "x.txt")
	require.NoError(t, err)
	a := segs["x.txt - Division A - DÉFENSE"]
	assert.Equal(t, "DIVISION A--DÉFENSE APPROPRIATIONS ACT\nFonds € 5.", a.Text)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "bill.html - Division C - DEPARTMENT OF HOMELAND SECURITY",
		Label("bill.html", "C", "DEPARTMENT OF HOMELAND SECURITY"))
}

func keys(m map[string]Segment) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
