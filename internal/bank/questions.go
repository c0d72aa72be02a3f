package bank

import (
	"errors"
	"fmt"
	"strings"
)

var ErrQuestionNotFound = errors.New("question not found")

// Questions is an ordered question list addressed by stable question ID.
// Mutating operations return a new list; the receiver is never modified.
type Questions []Question

func (qs Questions) IndexOf(id string) int {
	for i := range qs {
		if qs[i].ID == id {
			return i
		}
	}
	return -1
}

func (qs Questions) Get(id string) (Question, bool) {
	if i := qs.IndexOf(id); i >= 0 {
		return qs[i], true
	}
	return Question{}, false
}

// Replace puts q at the position of the question with the given id. The
// stored question keeps that id whatever q.ID holds.
func (qs Questions) Replace(id string, q Question) (Questions, error) {
	i := qs.IndexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrQuestionNotFound, id)
	}
	out := make(Questions, len(qs))
	copy(out, qs)
	q.ID = id
	out[i] = q
	return out, nil
}

func (qs Questions) Remove(id string) (Questions, error) {
	i := qs.IndexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrQuestionNotFound, id)
	}
	out := make(Questions, 0, len(qs)-1)
	out = append(out, qs[:i]...)
	return append(out, qs[i+1:]...), nil
}

// Types returns the distinct question types in list order.
func (qs Questions) Types() []QuestionType {
	seen := map[QuestionType]bool{}
	var out []QuestionType
	for _, q := range qs {
		if !seen[q.Type] {
			seen[q.Type] = true
			out = append(out, q.Type)
		}
	}
	return out
}

type ValidationSummary struct {
	Passed   int `json:"passed"`
	NeedsFix int `json:"needs_fix"`
	Total    int `json:"total"`
}

func (qs Questions) Summary() ValidationSummary {
	s := ValidationSummary{Total: len(qs)}
	for _, q := range qs {
		switch q.ValidationStatus {
		case StatusPass:
			s.Passed++
		case StatusNeedsFix:
			s.NeedsFix++
		}
	}
	return s
}

// Check verifies the structural invariants of a single question.
func (q Question) Check() error {
	var errs []string
	if !q.Type.Valid() {
		errs = append(errs, fmt.Sprintf("type %q is not allowed", q.Type))
	}
	if !q.Difficulty.Valid() {
		errs = append(errs, fmt.Sprintf("difficulty %q is not allowed", q.Difficulty))
	}
	if strings.TrimSpace(q.QuestionText) == "" {
		errs = append(errs, "question_text is empty")
	}
	for i, o := range q.Options {
		if strings.TrimSpace(o) == "" {
			errs = append(errs, fmt.Sprintf("option %d is empty", i))
		}
	}
	if q.CorrectAnswer < 0 || q.CorrectAnswer >= OptionCount {
		errs = append(errs, fmt.Sprintf("correct_answer %d out of range [0,%d]", q.CorrectAnswer, OptionCount-1))
	}
	if strings.TrimSpace(q.Evidence) == "" {
		errs = append(errs, "evidence is empty")
	}
	if _, err := ParseValidationStatus(string(q.ValidationStatus)); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
