// Package questions drafts interview questions for a research goal.
package questions

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospect-cli/pkg/anthropic"
)

// Question count bounds.
const (
	MinCount     = 1
	MaxCount     = 15
	DefaultCount = 8
)

// ErrEmptyGoal is returned when the research goal is blank.
var ErrEmptyGoal = eris.New("questions: research goal is required")

const systemPrompt = `You design short voice interviews for market research.
Write open-ended questions a busy professional can answer in under a minute each.
Return one question per line with no preamble and no closing remarks.`

// listMarker matches leading numbering or bullets such as "1.", "2)", "-", "*".
var listMarker = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s*`)

// Generator turns a research goal into interview questions.
type Generator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewGenerator creates a Generator.
func NewGenerator(client anthropic.Client, model string, maxTokens int64) *Generator {
	return &Generator{client: client, model: model, maxTokens: maxTokens}
}

// ClampCount forces n into [MinCount, MaxCount]; zero means DefaultCount.
func ClampCount(n int) int {
	switch {
	case n == 0:
		return DefaultCount
	case n < MinCount:
		return MinCount
	case n > MaxCount:
		return MaxCount
	}
	return n
}

// Generate asks the model for count questions about goal.
func (g *Generator) Generate(ctx context.Context, goal string, count int) ([]string, error) {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return nil, ErrEmptyGoal
	}
	count = ClampCount(count)

	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		System:    systemPrompt,
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: fmt.Sprintf("Research goal: %s\n\nWrite %d interview questions.", goal, count),
		}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "questions: generate")
	}
	resp.Usage.LogCost(g.model, "questions")

	qs := Parse(resp.Text())
	if len(qs) == 0 {
		return nil, eris.New("questions: model returned no questions")
	}
	if len(qs) > count {
		qs = qs[:count]
	}
	return qs, nil
}

// Parse splits model output into questions, dropping list markers and blank
// lines.
func Parse(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		q := strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		if q == "" {
			continue
		}
		out = append(out, q)
	}
	return out
}
