// Package rewards computes scalar rewards from routing outcomes.
package rewards

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// #region scorer

// Scorer turns an outcome value into a scalar reward. Implementations
// must return finite values; the lifecycle rejects anything else.
type Scorer interface {
	Score(result any) (float64, error)
}

// ScorerFunc adapts a plain function to the Scorer interface.
type ScorerFunc func(result any) (float64, error)

// Score calls f.
func (f ScorerFunc) Score(result any) (float64, error) {
	return f(result)
}

// #endregion scorer

// #region error-scorer

// ErrorScorer assigns a penalty when the outcome is an error value or a
// map carrying a truthy error key, and a success reward otherwise.
type ErrorScorer struct {
	ErrorKeys     []string
	Penalty       float64
	SuccessReward float64
}

// NewErrorScorer returns an ErrorScorer with the standard keys and a
// -1/+1 reward split.
func NewErrorScorer() *ErrorScorer {
	return &ErrorScorer{
		ErrorKeys:     []string{"error", "exception"},
		Penalty:       -1.0,
		SuccessReward: 1.0,
	}
}

// Score checks the outcome for error markers.
func (s *ErrorScorer) Score(result any) (float64, error) {
	if _, ok := result.(error); ok {
		return s.Penalty, nil
	}
	if m, ok := result.(map[string]any); ok {
		for _, key := range s.ErrorKeys {
			if truthy(m[key]) {
				return s.Penalty, nil
			}
		}
	}
	return s.SuccessReward, nil
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	default:
		return true
	}
}

// #endregion error-scorer

// #region llm-scorer

// CompleteFunc sends a prompt to a language model and returns its reply.
type CompleteFunc func(prompt string) (string, error)

// LLMScorer asks a language model to judge an outcome. The prompt template
// may contain {query} and {response} placeholders; the first number in the
// model's reply is the score.
type LLMScorer struct {
	Complete CompleteFunc
	Prompt   string
}

var numberPattern = regexp.MustCompile(`[-+]?\d*\.\d+|[-+]?\d+`)

// Score expects a map outcome with "query" and "response" string entries.
func (s *LLMScorer) Score(result any) (float64, error) {
	m, ok := result.(map[string]any)
	if !ok {
		return 0, fmt.Errorf("llm scorer: outcome must be a map, got %T", result)
	}
	query, _ := m["query"].(string)
	response, _ := m["response"].(string)

	prompt := strings.ReplaceAll(s.Prompt, "{query}", query)
	prompt = strings.ReplaceAll(prompt, "{response}", response)

	reply, err := s.Complete(prompt)
	if err != nil {
		return 0, fmt.Errorf("llm scorer: %w", err)
	}
	match := numberPattern.FindString(reply)
	if match == "" {
		return 0, fmt.Errorf("llm scorer: no numeric score in reply %q", reply)
	}
	score, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, fmt.Errorf("llm scorer: parse %q: %w", match, err)
	}
	return score, nil
}

// #endregion llm-scorer

// #region heuristic-scorer

// HeuristicScorer scores a text outcome as lexical diversity times a
// confidence proxy (1 - entropy). Outcomes are maps with a "response"
// string and an optional "entropy" float in [0, 1].
type HeuristicScorer struct{}

// Score computes the heuristic reward.
func (HeuristicScorer) Score(result any) (float64, error) {
	m, ok := result.(map[string]any)
	if !ok {
		return 0, fmt.Errorf("heuristic scorer: outcome must be a map, got %T", result)
	}
	response, _ := m["response"].(string)
	tokens := strings.Fields(strings.ToLower(response))
	if len(tokens) == 0 {
		return 0, nil
	}

	unique := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		unique[tok] = struct{}{}
	}
	diversity := float64(len(unique)) / float64(len(tokens))

	entropy := 0.0
	if e, ok := m["entropy"].(float64); ok {
		entropy = clamp01(e)
	}
	return clamp01(diversity * (1 - entropy)), nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion heuristic-scorer
