// Package question defines duel questions, their scoring rules and the bank
// that hands a fresh question set to each new match.
package question

import (
	"fmt"
	"strings"

	"github.com/okian/duelarena/internal/domain/types"
	"github.com/shopspring/decimal"
)

// Kind selects how an answer is compared with the expected one.
type Kind string

// Supported kinds.
const (
	KindExact   Kind = "exact"
	KindNumeric Kind = "numeric"
)

// Question is one quiz item. Answer is never sent to clients.
type Question struct {
	ID        string   `koanf:"id"`
	Topic     string   `koanf:"topic"`
	Prompt    string   `koanf:"prompt"`
	Choices   []string `koanf:"choices"`
	Kind      Kind     `koanf:"kind"`
	Answer    string   `koanf:"answer"`
	Tolerance float64  `koanf:"tolerance"`
}

// Public returns the client-facing view of q.
func (q Question) Public() types.QuestionView {
	return types.QuestionView{
		ID:      q.ID,
		Topic:   q.Topic,
		Prompt:  q.Prompt,
		Choices: append([]string(nil), q.Choices...),
		Kind:    string(q.kind()),
	}
}

// Check reports whether answer is correct. Numeric questions accept answers
// within the question's tolerance, or within fallback when it has none.
func (q Question) Check(answer string, fallback decimal.Decimal) bool {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return false
	}

	if q.kind() == KindExact {
		return strings.EqualFold(answer, strings.TrimSpace(q.Answer))
	}

	got, err := decimal.NewFromString(answer)
	if err != nil {
		return false
	}
	want, err := decimal.NewFromString(strings.TrimSpace(q.Answer))
	if err != nil {
		return false
	}
	tol := fallback
	if q.Tolerance > 0 {
		tol = decimal.NewFromFloat(q.Tolerance)
	}
	return got.Sub(want).Abs().LessThanOrEqual(tol.Abs())
}

// Validate checks that q can be served and scored.
func (q Question) Validate() error {
	if strings.TrimSpace(q.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidQuestion)
	}
	if strings.TrimSpace(q.Prompt) == "" || strings.TrimSpace(q.Answer) == "" {
		return fmt.Errorf("%w: %s: prompt and answer are required", ErrInvalidQuestion, q.ID)
	}
	switch q.kind() {
	case KindExact:
	case KindNumeric:
		if _, err := decimal.NewFromString(strings.TrimSpace(q.Answer)); err != nil {
			return fmt.Errorf("%w: %s: answer is not numeric", ErrInvalidQuestion, q.ID)
		}
	default:
		return fmt.Errorf("%w: %s: unknown kind %q", ErrInvalidQuestion, q.ID, q.Kind)
	}
	if q.Tolerance < 0 {
		return fmt.Errorf("%w: %s: negative tolerance", ErrInvalidQuestion, q.ID)
	}
	return nil
}

func (q Question) kind() Kind {
	if q.Kind == "" {
		return KindExact
	}
	return Kind(strings.ToLower(string(q.Kind)))
}

func (q Question) clone() Question {
	c := q
	c.Choices = append([]string(nil), q.Choices...)
	return c
}
