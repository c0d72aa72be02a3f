package workflow

import "sync"

// Step is the coarse position shown by the workflow indicator.
type Step string

const (
	StepInput    Step = "input"
	StepGenerate Step = "generate"
	StepReview   Step = "review"
	StepSave     Step = "save"
)

type Variant string

const (
	VariantSuccess Variant = "success"
	VariantError   Variant = "error"
	VariantInfo    Variant = "info"
)

// Toast is a short notification for the user.
type Toast struct {
	Title       string
	Description string
	Variant     Variant
}

// Session holds the state shared by every screen of one client session: the
// current workflow step and the pending notifications. Create one per
// session and pass it to whatever needs it.
type Session struct {
	mu     sync.Mutex
	step   Step
	toasts []Toast
}

func NewSession() *Session {
	return &Session{step: StepInput}
}

func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

func (s *Session) SetStep(step Step) {
	s.mu.Lock()
	s.step = step
	s.mu.Unlock()
}

func (s *Session) Notify(t Toast) {
	s.mu.Lock()
	s.toasts = append(s.toasts, t)
	s.mu.Unlock()
}

// Drain returns the queued toasts in order and empties the queue.
func (s *Session) Drain() []Toast {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.toasts
	s.toasts = nil
	return out
}
