// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tasksearch

import (
	"math"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/bureau-foundation/teamflow/lib/schema/planner"
)

// Okapi parameters.
const (
	k1 = 1.2
	b  = 0.75

	// idfFloor replaces a negative IDF for terms present in more than
	// half the tasks.
	idfFloor = 0.25
)

// Field weights: a field's tokens are repeated this many times in the
// task's composite document.
const (
	titleWeight       = 3
	descriptionWeight = 1
)

// Hit is one ranked task.
type Hit struct {
	Task  planner.Task `json:"task"`
	Score float64      `json:"score"`
}

type entry struct {
	task   planner.Task
	terms  map[string]int
	length int
}

// Index ranks a fixed set of tasks. Safe for concurrent Search calls.
type Index struct {
	entries       []entry
	averageLength float64
	idf           map[string]float64
}

// New indexes tasks.
func New(tasks []planner.Task) *Index {
	index := &Index{
		entries: make([]entry, len(tasks)),
		idf:     make(map[string]float64),
	}

	containing := make(map[string]int)
	var total int
	for i, task := range tasks {
		terms := make(map[string]int)
		length := 0
		for _, field := range []struct {
			text   string
			weight int
		}{
			{task.Title, titleWeight},
			{task.Description, descriptionWeight},
		} {
			for _, token := range Tokenize(field.text) {
				terms[token] += field.weight
				length += field.weight
			}
		}
		for term := range terms {
			containing[term]++
		}
		index.entries[i] = entry{task: task, terms: terms, length: length}
		total += length
	}

	if len(tasks) > 0 {
		index.averageLength = float64(total) / float64(len(tasks))
	}
	count := float64(len(tasks))
	for term, n := range containing {
		idf := math.Log(1 + (count-float64(n)+0.5)/(float64(n)+0.5))
		if idf < 0 {
			idf = idfFloor
		}
		index.idf[term] = idf
	}
	return index
}

// Len returns the number of indexed tasks.
func (index *Index) Len() int {
	return len(index.entries)
}

// Search returns up to limit tasks matching query, best first. Ties
// keep the order the tasks were indexed in. A limit of zero or less
// returns every match. A query with no tokens matches nothing.
func (index *Index) Search(query string, limit int) []Hit {
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return nil
	}
	slices.Sort(tokens)
	tokens = slices.Compact(tokens)

	var hits []Hit
	for i := range index.entries {
		if score := index.score(&index.entries[i], tokens); score > 0 {
			hits = append(hits, Hit{Task: index.entries[i].task, Score: score})
		}
	}
	slices.SortStableFunc(hits, func(x, y Hit) int {
		switch {
		case x.Score > y.Score:
			return -1
		case x.Score < y.Score:
			return 1
		}
		return 0
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

func (index *Index) score(e *entry, tokens []string) float64 {
	var score float64
	for _, token := range tokens {
		frequency := float64(e.terms[token])
		if frequency == 0 {
			continue
		}
		norm := 1 - b + b*float64(e.length)/index.averageLength
		score += index.idf[token] * frequency * (k1 + 1) / (frequency + k1*norm)
	}
	return score
}

// Tokenize splits text into lowercase runs of letters and digits,
// dropping runs shorter than two runes.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, field := range fields {
		if utf8.RuneCountInString(field) >= 2 {
			tokens = append(tokens, field)
		}
	}
	return tokens
}
