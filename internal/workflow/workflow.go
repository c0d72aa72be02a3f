// Package workflow is the review/edit state machine a client runs around the
// generation API: settings → generating → results, with per-question
// regeneration, manual edits and saving to the bank.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mind-engage/mindengage-qbank/internal/apperr"
	"github.com/mind-engage/mindengage-qbank/internal/bank"
	"github.com/mind-engage/mindengage-qbank/internal/schema"
)

type Phase string

const (
	PhaseInput      Phase = "input"
	PhaseGenerating Phase = "generating"
	PhaseResults    Phase = "results"
)

var (
	ErrNoQuestionTypes = errors.New("select at least one question type")
	ErrBusy            = errors.New("a generation for this item is already running")
	ErrWrongPhase      = errors.New("action not available in the current phase")
	ErrNotEditing      = errors.New("no question is being edited")
)

type Generator interface {
	Generate(ctx context.Context, req schema.GenerationRequest) (bank.Payload, error)
	Regenerate(ctx context.Context, req schema.RegenerateRequest) (bank.Question, error)
}

type Saver interface {
	SaveQuestionSet(ctx context.Context, in bank.CreateQuestionSetInput) (bank.QuestionSet, error)
}

type Settings struct {
	GradeLevel    bank.GradeLevel
	Difficulty    bank.Difficulty
	Count         int
	QuestionTypes []bank.QuestionType
}

// Workflow is safe for concurrent use. Remote calls run without the lock
// held, so regenerations of different questions proceed independently.
type Workflow struct {
	gen       Generator
	saver     Saver
	session   *Session
	passageID string

	mu           sync.Mutex
	phase        Phase
	settings     Settings
	questions    bank.Questions
	meta         bank.Meta
	regenerating map[string]bool
	editing      *bank.Question
}

func New(session *Session, gen Generator, saver Saver, passageID string) *Workflow {
	return &Workflow{
		gen:          gen,
		saver:        saver,
		session:      session,
		passageID:    passageID,
		phase:        PhaseInput,
		regenerating: map[string]bool{},
	}
}

func (w *Workflow) Phase() Phase {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.phase
}

// Questions returns a copy of the current list.
func (w *Workflow) Questions() bank.Questions {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append(bank.Questions(nil), w.questions...)
}

func (w *Workflow) Summary() bank.ValidationSummary {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.questions.Summary()
}

func (w *Workflow) IsRegenerating(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.regenerating[id]
}

// Generate requests a fresh question list. From results it starts over; the
// previous list is dropped whether or not the new request succeeds.
func (w *Workflow) Generate(ctx context.Context, s Settings) error {
	if len(s.QuestionTypes) == 0 {
		return ErrNoQuestionTypes
	}
	w.mu.Lock()
	switch {
	case w.phase == PhaseGenerating, len(w.regenerating) > 0:
		w.mu.Unlock()
		return ErrBusy
	}
	w.phase = PhaseGenerating
	w.settings = s
	w.questions = nil
	w.meta = bank.Meta{}
	w.editing = nil
	w.mu.Unlock()
	w.session.SetStep(StepGenerate)

	payload, err := w.gen.Generate(ctx, schema.GenerationRequest{
		PassageID:     w.passageID,
		GradeLevel:    s.GradeLevel,
		Difficulty:    s.Difficulty,
		Count:         s.Count,
		QuestionTypes: s.QuestionTypes,
	})

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.phase = PhaseInput
		w.session.SetStep(StepInput)
		w.session.Notify(errorToast("Generation failed", err))
		return err
	}
	w.phase = PhaseResults
	w.questions = payload.Questions
	w.meta = payload.Meta
	w.session.SetStep(StepReview)
	sum := payload.Questions.Summary()
	w.session.Notify(Toast{
		Title:       "Questions generated",
		Description: fmt.Sprintf("%d questions: %d passed, %d need attention.", sum.Total, sum.Passed, sum.NeedsFix),
		Variant:     VariantSuccess,
	})
	return nil
}

// Regenerate replaces one question in place. A second call for the same id
// while the first is pending, or while that question is open for editing,
// fails with ErrBusy.
func (w *Workflow) Regenerate(ctx context.Context, id string) (bank.Question, error) {
	w.mu.Lock()
	if w.phase != PhaseResults {
		w.mu.Unlock()
		return bank.Question{}, ErrWrongPhase
	}
	q, ok := w.questions.Get(id)
	if !ok {
		w.mu.Unlock()
		return bank.Question{}, fmt.Errorf("%w: %s", bank.ErrQuestionNotFound, id)
	}
	if w.regenerating[id] || (w.editing != nil && w.editing.ID == id) {
		w.mu.Unlock()
		return bank.Question{}, ErrBusy
	}
	w.regenerating[id] = true
	grade := w.settings.GradeLevel
	w.mu.Unlock()

	nq, err := w.gen.Regenerate(ctx, schema.RegenerateRequest{PassageID: w.passageID, GradeLevel: grade, Question: q})

	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.regenerating, id)
	if err != nil {
		w.session.Notify(errorToast("Regeneration failed", err))
		return bank.Question{}, err
	}
	list, err := w.questions.Replace(id, nq)
	if err != nil {
		return bank.Question{}, err
	}
	w.questions = list
	nq.ID = id
	w.session.Notify(Toast{Title: "Question regenerated", Description: "The question was replaced.", Variant: VariantSuccess})
	return nq, nil
}

// BeginEdit returns a copy of the question to edit. Nothing changes until
// CommitEdit.
func (w *Workflow) BeginEdit(id string) (bank.Question, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.phase != PhaseResults {
		return bank.Question{}, ErrWrongPhase
	}
	if w.regenerating[id] {
		return bank.Question{}, ErrBusy
	}
	q, ok := w.questions.Get(id)
	if !ok {
		return bank.Question{}, fmt.Errorf("%w: %s", bank.ErrQuestionNotFound, id)
	}
	cp := q
	if q.ValidationNote != nil {
		note := *q.ValidationNote
		cp.ValidationNote = &note
	}
	w.editing = &cp
	return cp, nil
}

// CommitEdit writes the edited question back at its original position.
func (w *Workflow) CommitEdit(q bank.Question) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.editing == nil {
		return ErrNotEditing
	}
	if w.regenerating[w.editing.ID] {
		return ErrBusy
	}
	if err := q.Check(); err != nil {
		return apperr.Wrap(apperr.KindValidation, err.Error(), err)
	}
	if q.ValidationStatus == bank.StatusPass {
		q.ValidationNote = nil
	}
	list, err := w.questions.Replace(w.editing.ID, q)
	if err != nil {
		return err
	}
	w.questions = list
	w.editing = nil
	w.session.Notify(Toast{Title: "Question updated", Description: "Your changes were applied.", Variant: VariantSuccess})
	return nil
}

func (w *Workflow) CancelEdit() {
	w.mu.Lock()
	w.editing = nil
	w.mu.Unlock()
}

// Save stores the reviewed list as a question set. On success the workflow
// returns to input; the caller moves on to the bank listing.
func (w *Workflow) Save(ctx context.Context) (bank.QuestionSet, error) {
	w.mu.Lock()
	if w.phase != PhaseResults || len(w.questions) == 0 {
		w.mu.Unlock()
		return bank.QuestionSet{}, ErrWrongPhase
	}
	if len(w.regenerating) > 0 {
		w.mu.Unlock()
		return bank.QuestionSet{}, ErrBusy
	}
	qs := append(bank.Questions(nil), w.questions...)
	meta := w.meta
	meta.QuestionCount = len(qs)
	in := bank.CreateQuestionSetInput{
		PassageID:     w.passageID,
		Difficulty:    w.settings.Difficulty,
		QuestionCount: len(qs),
		QuestionTypes: meta.QuestionTypes,
		Payload:       bank.Payload{Questions: qs, Meta: meta},
	}
	w.mu.Unlock()
	w.session.SetStep(StepSave)

	saved, err := w.saver.SaveQuestionSet(ctx, in)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.session.SetStep(StepReview)
		w.session.Notify(errorToast("Save failed", err))
		return bank.QuestionSet{}, err
	}
	w.phase = PhaseInput
	w.questions = nil
	w.meta = bank.Meta{}
	w.editing = nil
	w.session.SetStep(StepInput)
	w.session.Notify(Toast{
		Title:       "Question set saved",
		Description: fmt.Sprintf("%d questions were added to your bank.", saved.QuestionCount),
		Variant:     VariantSuccess,
	})
	return saved, nil
}

func errorToast(title string, err error) Toast {
	return Toast{Title: title, Description: apperr.From(err).Kind.Message(), Variant: VariantError}
}
