package route

import (
	"strings"

	"github.com/dgallion1/lawsearch/internal/division"
)

const promptHeader = `You are an expert legislative financial analyst at a premier lobbying firm.
Given the question, identify the relevant subcommittees that should be queried.

ONLY use the EXACT subcommittee names from this list:
`

const promptFooter = `
Return ONLY a Python list of strings from the EXACT subcommittee names listed above.
Example: ["DEPARTMENT OF HOMELAND SECURITY", "DEPARTMENT OF DEFENSE"]
Relevant Subcommittees:
`

// BuildPrompt renders the routing instruction listing every label in vocab.
func BuildPrompt(vocab *division.Vocabulary, question string) string {
	var sb strings.Builder
	sb.WriteString(promptHeader)
	for _, l := range vocab.Labels() {
		sb.WriteString("- ")
		sb.WriteString(l)
		sb.WriteString("\n")
	}
	sb.WriteString("\nQuestion: ")
	sb.WriteString(question)
	sb.WriteString("\n")
	sb.WriteString(promptFooter)
	return sb.String()
}
