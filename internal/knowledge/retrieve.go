package knowledge

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// DefaultTopK is the number of results returned when none is requested.
const DefaultTopK = 3

// Result is a scored chunk.
type Result struct {
	Content string `json:"content"`
	Source  string `json:"source"`
	Score   int    `json:"score"`
}

const stripChars = `.,?!;:()"'`

// Normalize lowercases the query, splits it on whitespace, keeps tokens longer
// than three characters and strips punctuation from them. Tokens that are
// empty after stripping are dropped.
func Normalize(query string) []string {
	var terms []string
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		if utf8.RuneCountInString(tok) <= 3 {
			continue
		}
		tok = strings.Map(func(r rune) rune {
			if strings.ContainsRune(stripChars, r) {
				return -1
			}
			return r
		}, tok)
		if tok == "" {
			continue
		}
		terms = append(terms, tok)
	}
	return terms
}

// Retrieve scores every chunk by the number of non-overlapping occurrences of
// each query term, drops chunks scoring zero and returns the best topK in
// descending score order. Ties keep corpus order.
func Retrieve(query string, corpus []Chunk, topK int) []Result {
	if topK <= 0 {
		topK = DefaultTopK
	}
	terms := Normalize(query)
	if len(terms) == 0 {
		return nil
	}

	var results []Result
	for _, c := range corpus {
		lower := strings.ToLower(c.Text)
		score := 0
		for _, term := range terms {
			score += strings.Count(lower, term)
		}
		if score == 0 {
			continue
		}
		results = append(results, Result{Content: c.Text, Source: c.Source, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}
