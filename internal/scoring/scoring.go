// Package scoring grades answer-based phases against fixed answer keys.
package scoring

import (
	"math"

	"github.com/adonhq/assessment-backend/internal/model"
)

// KeyEntry is one question of an answer key.
type KeyEntry struct {
	Question string `json:"question"`
	Correct  string `json:"correct"`
}

// AnswerKey is an ordered set of questions with their correct option, plus
// the minimum number of correct answers needed to pass.
type AnswerKey struct {
	Entries       []KeyEntry
	PassThreshold int
}

// Total is the number of questions in the key.
func (k AnswerKey) Total() int { return len(k.Entries) }

// Map returns the key as question → correct option.
func (k AnswerKey) Map() map[string]string {
	m := make(map[string]string, len(k.Entries))
	for _, e := range k.Entries {
		m[e.Question] = e.Correct
	}
	return m
}

// PhaseOneKey is the attention-to-detail test.
var PhaseOneKey = AnswerKey{
	Entries: []KeyEntry{
		{Question: "acquisitionAccount", Correct: "11456789"},
		{Question: "acquisitionSecurity", Correct: "Nv8"},
		{Question: "landecStatus", Correct: "Inactive"},
		{Question: "heliosName", Correct: "Helios Incorporated"},
		{Question: "heliosSecurity", Correct: "tRR"},
	},
	PassThreshold: 3,
}

// PhaseTwoKey is the English comprehension test.
var PhaseTwoKey = AnswerKey{
	Entries: []KeyEntry{
		{Question: "q1", Correct: "on"},
		{Question: "q2", Correct: "gone"},
		{Question: "q3", Correct: "been"},
		{Question: "q4", Correct: "been"},
		{Question: "q5", Correct: "gone"},
		{Question: "q6", Correct: "in"},
		{Question: "q7", Correct: "of"},
		{Question: "q8", Correct: "to"},
		{Question: "q9", Correct: "weren’t"},
		{Question: "q10", Correct: "were"},
	},
	PassThreshold: 6,
}

// KeyFor returns the answer key of an answer-based phase.
func KeyFor(phase model.Phase) (AnswerKey, bool) {
	switch phase {
	case model.PhaseOne:
		return PhaseOneKey, true
	case model.PhaseTwo:
		return PhaseTwoKey, true
	default:
		return AnswerKey{}, false
	}
}

// Result is the verdict for one answer set.
type Result struct {
	Score          int     `json:"score"`
	TotalQuestions int     `json:"total_questions"`
	Percentage     float64 `json:"percentage"`
	Passed         bool    `json:"is_passed"`
}

// Score grades answers against key. Matching is exact and case-sensitive;
// missing or unknown questions simply do not count.
func Score(key AnswerKey, answers map[string]string) Result {
	score := 0
	for _, e := range key.Entries {
		if got, ok := answers[e.Question]; ok && got == e.Correct {
			score++
		}
	}

	total := key.Total()
	var pct float64
	if total > 0 {
		pct = Round2(float64(score) / float64(total) * 100)
	}

	return Result{
		Score:          score,
		TotalQuestions: total,
		Percentage:     pct,
		Passed:         score >= key.PassThreshold,
	}
}

// Round2 rounds to two decimal places, halves away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// NormalizeAnswers keeps the string-valued entries of a loosely decoded
// answer mapping. Anything else can never match a key and is dropped.
func NormalizeAnswers(raw map[string]any) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
