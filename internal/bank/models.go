package bank

import "time"

const (
	MinPassageLen  = 100
	MaxPassageLen  = 10000
	MaxTitleLen    = 200
	OptionCount    = 4
	MinSetQuestion = 1
	MaxSetQuestion = 20
)

type Passage struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	GradeLevel GradeLevel `json:"grade_level"`
	CreatedAt  time.Time  `json:"created_at"`
}

type CreatePassageInput struct {
	Content    string     `json:"content"`
	GradeLevel GradeLevel `json:"grade_level"`
	Title      string     `json:"title,omitempty"`
}

// UpdatePassageInput is a partial update; nil fields are left unchanged.
type UpdatePassageInput struct {
	Content    *string     `json:"content,omitempty"`
	GradeLevel *GradeLevel `json:"grade_level,omitempty"`
	Title      *string     `json:"title,omitempty"`
}

type Question struct {
	ID               string              `json:"id"`
	Type             QuestionType        `json:"type"`
	Difficulty       Difficulty          `json:"difficulty"`
	QuestionText     string              `json:"question_text"`
	Options          [OptionCount]string `json:"options"`
	CorrectAnswer    int                 `json:"correct_answer"` // 0-based index into Options
	Evidence         string              `json:"evidence"`
	ValidationStatus ValidationStatus    `json:"validation_status"`
	ValidationNote   *string             `json:"validation_note,omitempty"` // only when NEEDS_FIX
}

type Meta struct {
	GradeLevel    GradeLevel     `json:"grade_level"`
	Difficulty    Difficulty     `json:"difficulty"`
	QuestionTypes []QuestionType `json:"question_types"`
	QuestionCount int            `json:"question_count"`
}

type Payload struct {
	Questions Questions `json:"questions"`
	Meta      Meta      `json:"meta"`
}

type QuestionSet struct {
	ID            string         `json:"id"`
	PassageID     string         `json:"passage_id"`
	UserID        string         `json:"user_id"`
	Difficulty    Difficulty     `json:"difficulty"`
	QuestionCount int            `json:"question_count"`
	QuestionTypes []QuestionType `json:"question_types"`
	Payload       Payload        `json:"payload"`
	CreatedAt     time.Time      `json:"created_at"`
}

type PassageSummary struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	GradeLevel GradeLevel `json:"grade_level"`
}

type QuestionSetWithPassage struct {
	QuestionSet
	Passage PassageSummary `json:"passage"`
}

type CreateQuestionSetInput struct {
	PassageID     string         `json:"passage_id"`
	Difficulty    Difficulty     `json:"difficulty"`
	QuestionCount int            `json:"question_count"`
	QuestionTypes []QuestionType `json:"question_types"`
	Payload       Payload        `json:"payload"`
}

// QuestionSetPatch is a partial update of a saved set. Counts are never taken
// from the caller; they are re-derived from the question list.
type QuestionSetPatch struct {
	Difficulty    *Difficulty     `json:"difficulty,omitempty"`
	QuestionTypes *[]QuestionType `json:"question_types,omitempty"`
	Questions     *Questions      `json:"questions,omitempty"`
}
