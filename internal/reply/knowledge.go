package reply

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Knowledge answers from the agent's knowledge text: paragraphs are ranked by
// Jaccard similarity between token sets, score = |Q ∩ P| / |Q ∪ P|.
type Knowledge struct {
	// MinScore is the lowest similarity that still counts as an answer.
	MinScore float64
	// MaxSnippets caps how many paragraphs are joined into the reply.
	MaxSnippets int
	Stopwords   map[string]struct{}
}

// NewKnowledge returns a generator tuned for short Spanish/English FAQs.
func NewKnowledge() *Knowledge {
	return &Knowledge{MinScore: 0.08, MaxSnippets: 1, Stopwords: stopwordSet(defaultStopwords)}
}

// Generate returns the best matching paragraph(s), or "" when nothing
// clears MinScore. A FORM prompt is appended so the contact still sees it.
func (k *Knowledge) Generate(_ context.Context, req Request) (string, error) {
	answer := strings.Join(k.TopK(req.Agent.Knowledge, req.UserMessage), "\n\n")
	if answer == "" {
		return "", nil
	}
	if form := req.Intent.FormMessage(); form != "" {
		answer += "\n\n" + form
	}
	return answer, nil
}

type scoredPara struct {
	text  string
	score float64
	runes int
}

// TopK ranks the paragraphs of knowledge against query.
func (k *Knowledge) TopK(knowledge, query string) []string {
	q := tokenize(query, k.Stopwords)
	if len(q) == 0 {
		return nil
	}
	limit := k.MaxSnippets
	if limit <= 0 {
		limit = 1
	}

	var ranked []scoredPara
	for _, p := range paragraphs(knowledge) {
		toks := tokenize(p, k.Stopwords)
		over := overlap(q, toks)
		if over == 0 {
			continue
		}
		score := float64(over) / float64(len(q)+len(toks)-over)
		if score < k.MinScore {
			continue
		}
		ranked = append(ranked, scoredPara{text: p, score: score, runes: utf8.RuneCountInString(p)})
	}

	// Deterministic: score desc, shorter first, then lexical.
	sort.SliceStable(ranked, func(a, b int) bool {
		if ranked[a].score != ranked[b].score {
			return ranked[a].score > ranked[b].score
		}
		if ranked[a].runes != ranked[b].runes {
			return ranked[a].runes < ranked[b].runes
		}
		return ranked[a].text < ranked[b].text
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.text
	}
	return out
}

var (
	wordRE      = regexp.MustCompile(`\p{L}+\p{N}*|\p{N}+`)
	paraSplitRE = regexp.MustCompile(`\n\s*\n`)
)

// paragraphs splits on blank lines and flattens markdown table rows into
// standalone facts ("| Horario | 9 a 18 |" becomes "Horario 9 a 18").
func paragraphs(text string) []string {
	var out []string
	for _, chunk := range paraSplitRE.Split(text, -1) {
		var plain []string
		for _, line := range strings.Split(chunk, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "|") && strings.HasSuffix(line, "|") {
				if row := tableRow(line); row != "" {
					out = append(out, row)
				}
				continue
			}
			plain = append(plain, line)
		}
		if p := normalizeWhitespace(strings.Join(plain, " ")); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func tableRow(line string) string {
	cells := make([]string, 0, 4)
	separator := true
	for _, c := range strings.Split(strings.Trim(line, "|"), "|") {
		c = strings.TrimSpace(c)
		if strings.Trim(c, ":- ") != "" {
			separator = false
		}
		if c != "" {
			cells = append(cells, c)
		}
	}
	if separator {
		return ""
	}
	return strings.Join(cells, " ")
}

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(strings.ToLower(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, skip := stop[w]; skip {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func stopwordSet(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

var defaultStopwords = []string{
	"a", "al", "de", "del", "el", "la", "las", "los", "en", "y", "o", "que", "es", "un", "una",
	"por", "para", "con", "se", "su", "sus", "me", "mi", "tu", "te", "lo", "le", "hay", "qué",
	"cual", "cuál", "como", "cómo", "hola",
	"the", "an", "and", "or", "of", "to", "in", "is", "are", "what", "how", "do", "does",
	"you", "your", "i", "my", "for", "on", "at", "hi", "hello",
}
