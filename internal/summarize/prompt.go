package summarize

import "strings"

const mapPrompt = `You are an expert legislative financial analyst at a premier lobbying firm. Extract key financial and legislative information from the following context to answer the question.

1. **Extract** every dollar figure, fiscal year, agency/department name, or section number from the context.
2. **Include** only information relevant to the question.
3. **Keep** each statement concise with one numeric fact per sentence when possible.

Context:
{context}

Question:
{question}

Extracted Information:
`

const combinePrompt = `You are an expert legislative financial analyst at a premier lobbying firm. Synthesize the following extracted information into a comprehensive answer.

1. **Integrate** all relevant dollar figures, fiscal years, agency names, and section references.
2. **Maintain** all citations in square brackets.
3. **Present** a concise, policy-brief tone: clear, authoritative, and numerically accurate.
4. **Eliminate** redundancies while preserving all unique information.
5. **Organize** information logically by topic, agency, or fiscal year as appropriate. Use nested bullets for sub-allocations.

Question:
{question}

Extracted Information:
{summaries}

Comprehensive Answer:
`

// BuildMapPrompt renders the per-chunk extraction prompt.
func BuildMapPrompt(context, question string) string {
	return strings.NewReplacer("{context}", context, "{question}", question).Replace(mapPrompt)
}

// BuildCombinePrompt renders the reduce prompt over joined extractions.
func BuildCombinePrompt(summaries, question string) string {
	return strings.NewReplacer("{summaries}", summaries, "{question}", question).Replace(combinePrompt)
}
