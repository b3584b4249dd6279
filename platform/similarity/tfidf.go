// Package similarity scores submissions against each other with tf-idf
// weighted cosine similarity over title, abstract and keywords.
package similarity

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

type Document struct {
	Id   uuid.UUID
	Text string
}

type Match struct {
	Id    uuid.UUID `json:"id"`
	Score float64   `json:"score"`
}

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`a an and are as at be been but by can for from has have in into is it its
		of on or our over such that the their then there these this those to using via was we were which while
		with within without paper propose proposed approach results show`) {
		stopwords[w] = struct{}{}
	}
}

func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < 2 {
			continue
		}
		if _, ok := stopwords[f]; ok {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

type vector map[string]float64

func termFrequencies(tokens []string) map[string]float64 {
	tf := make(map[string]float64, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	for t := range tf {
		tf[t] /= float64(len(tokens))
	}
	return tf
}

func (v vector) norm() float64 {
	sum := 0.0
	for _, w := range v {
		sum += w * w
	}
	return math.Sqrt(sum)
}

func cosine(a, b vector) float64 {
	na, nb := a.norm(), b.norm()
	if na == 0 || nb == 0 {
		return 0
	}
	dot := 0.0
	for t, w := range a {
		dot += w * b[t]
	}
	return dot / (na * nb)
}

// Rank scores every corpus document against target and returns the best
// matches with a positive score, highest first. The target itself is skipped
// if it appears in the corpus. limit <= 0 returns all matches.
func Rank(target Document, corpus []Document, limit int) []Match {
	docs := make([]Document, 0, len(corpus)+1)
	docs = append(docs, target)
	for _, d := range corpus {
		if d.Id != target.Id {
			docs = append(docs, d)
		}
	}

	tfs := make([]map[string]float64, len(docs))
	df := map[string]int{}
	for i, d := range docs {
		tfs[i] = termFrequencies(Tokenize(d.Text))
		for t := range tfs[i] {
			df[t]++
		}
	}

	n := float64(len(docs))
	vectors := make([]vector, len(docs))
	for i, tf := range tfs {
		v := make(vector, len(tf))
		for t, f := range tf {
			// Smoothed idf keeps terms shared by every document above zero.
			v[t] = f * (math.Log((1+n)/(1+float64(df[t]))) + 1)
		}
		vectors[i] = v
	}

	matches := make([]Match, 0, len(docs)-1)
	for i := 1; i < len(docs); i++ {
		score := cosine(vectors[0], vectors[i])
		if score > 0 {
			matches = append(matches, Match{Id: docs[i].Id, Score: math.Round(score*1e4) / 1e4})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
