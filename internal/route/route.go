// Package route asks the fast model which divisions a question concerns.
package route

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dgallion1/lawsearch/internal/division"
	"github.com/dgallion1/lawsearch/internal/policy"
	"go.uber.org/zap"
)

// Router selects divisions for a question.
type Router struct {
	vocab    *division.Vocabulary
	resolver *policy.Resolver
	log      *zap.Logger
}

func New(vocab *division.Vocabulary, resolver *policy.Resolver, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{vocab: vocab, resolver: resolver, log: log}
}

// Route returns the selected labels in the model's order. An unparseable
// reply selects nothing; only a failed model call is an error.
func (r *Router) Route(ctx context.Context, question string) ([]string, error) {
	res, err := r.resolver.Resolve(policy.Low, policy.Routing)
	if err != nil {
		return nil, fmt.Errorf("resolve routing model: %w", err)
	}

	raw, err := res.Model.Complete(ctx, BuildPrompt(r.vocab, question))
	if err != nil {
		return nil, fmt.Errorf("routing call: %w", err)
	}

	selected := ParseSelection(raw, r.vocab)
	if len(selected) == 0 {
		r.log.Warn("router selected no divisions",
			zap.String("reply", truncate(raw, 200)))
	} else {
		r.log.Debug("routed", zap.Strings("divisions", selected))
	}
	return selected, nil
}

// ParseSelection extracts vocabulary labels from a model reply. It never
// fails: anything it cannot read yields an empty, non-nil slice.
func ParseSelection(raw string, vocab *division.Vocabulary) []string {
	content := stripFence(strings.TrimSpace(raw))

	items, ok := parseJSONList(content)
	if !ok {
		items, ok = scanQuotedList(content)
	}
	out := []string{}
	if !ok {
		return out
	}

	seen := make(map[string]bool, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if !vocab.Contains(it) || seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}

// stripFence drops the opening and closing lines of a fenced block and any
// blank lines between them.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 3 {
		return s
	}
	var kept []string
	for _, l := range lines[1 : len(lines)-1] {
		if strings.TrimSpace(l) != "" {
			kept = append(kept, l)
		}
	}
	if len(kept) == 0 {
		return s
	}
	return strings.Join(kept, "\n")
}

func parseJSONList(s string) ([]string, bool) {
	var items []string
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil, false
	}
	return items, true
}

// scanQuotedList reads a bracketed list of single- or double-quoted strings,
// as a model imitating a Python literal writes it. A trailing comma is
// allowed; anything else outside the quotes is a failure.
func scanQuotedList(s string) ([]string, bool) {
	rs := []rune(strings.TrimSpace(s))
	if len(rs) < 2 || rs[0] != '[' || rs[len(rs)-1] != ']' {
		return nil, false
	}
	rs = rs[1 : len(rs)-1]

	var items []string
	i := 0
	skipSpace := func() {
		for i < len(rs) && (rs[i] == ' ' || rs[i] == '\t' || rs[i] == '\n' || rs[i] == '\r') {
			i++
		}
	}
	for {
		skipSpace()
		if i >= len(rs) {
			return items, true
		}
		q := rs[i]
		if q != '"' && q != '\'' {
			return nil, false
		}
		i++
		var sb strings.Builder
		closed := false
		for i < len(rs) {
			c := rs[i]
			i++
			if c == '\\' && i < len(rs) {
				sb.WriteRune(rs[i])
				i++
				continue
			}
			if c == q {
				closed = true
				break
			}
			sb.WriteRune(c)
		}
		if !closed {
			return nil, false
		}
		items = append(items, sb.String())

		skipSpace()
		if i >= len(rs) {
			return items, true
		}
		if rs[i] != ',' {
			return nil, false
		}
		i++
	}
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n]) + "..."
}
