package collect

import "strings"

// Similarity scores how closely a candidate name matches the subject name,
// in [0, 1]. It is token overlap over the union of tokens, case-insensitive,
// so "John Smith" vs "Smith, John" scores 1.0 and unrelated names score 0.
func Similarity(subject, candidate string) float64 {
	a := tokenize(subject)
	b := tokenize(candidate)
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	union := make(map[string]struct{}, len(a)+len(b))
	for tok := range a {
		union[tok] = struct{}{}
	}
	for tok := range b {
		union[tok] = struct{}{}
	}

	var shared int
	for tok := range a {
		if _, ok := b[tok]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(union))
}

func tokenize(name string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, field := range strings.Fields(name) {
		tok := strings.ToLower(strings.Trim(field, ".,;:'\"()"))
		if tok != "" {
			tokens[tok] = struct{}{}
		}
	}
	return tokens
}
