// Package security screens user input before it reaches any model-facing
// component. The filter is a cheap, deterministic guard: a screened message
// never triggers an embedding, retrieval, or generation call.
package security

import (
	"strings"
)

// Filter matches user input against a denylist of terms and supplies a
// canned reply for matches. Matching is case-insensitive and substring
// based, so "BAKWAAS!" and "what bakwaas" both trip the filter.
type Filter struct {
	terms []string
	reply string
}

// NewFilter builds a filter over the given terms. Terms are normalized to
// lower case; empty terms are dropped. The reply is returned verbatim for
// any screened message.
func NewFilter(terms []string, reply string) *Filter {
	normalized := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		normalized = append(normalized, t)
	}
	return &Filter{terms: normalized, reply: reply}
}

// Screen checks the message against the denylist. When the message matches,
// it returns the canned reply and true; callers must short-circuit and skip
// the pipeline entirely. Otherwise it returns "" and false.
func (f *Filter) Screen(message string) (string, bool) {
	lowered := strings.ToLower(message)
	for _, term := range f.terms {
		if strings.Contains(lowered, term) {
			return f.reply, true
		}
	}
	return "", false
}

// Terms returns a copy of the active denylist, mainly for diagnostics.
func (f *Filter) Terms() []string {
	out := make([]string, len(f.terms))
	copy(out, f.terms)
	return out
}
