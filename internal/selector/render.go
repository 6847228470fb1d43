package selector

import (
	"fmt"
	"strings"
)

// NoCandidates is rendered when the merged pool is empty.
const NoCandidates = "no candidates found"

// DefaultHeader opens a rendered candidate list.
const DefaultHeader = "candidate links found"

const chooseOne = "you must choose exactly one of the options above, the one most likely to be the requested track, and reply with its url only"

// Render formats a result for the model: a header carrying the marker, one
// candidate per line with the score to four decimals, and an instruction to
// pick exactly one url.
func Render(res Result, header string) string {
	if res.Empty() {
		return NoCandidates
	}
	if header == "" {
		header = DefaultHeader
	}
	var b strings.Builder
	b.WriteString(header)
	b.WriteString(":\n")
	for _, c := range res.Candidates {
		fmt.Fprintf(&b, "title: %s | url: %s | score: %.4f\n", c.Title, c.URL, c.Score)
	}
	b.WriteString(chooseOne)
	return b.String()
}
