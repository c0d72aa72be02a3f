package bank

import "fmt"

// GradeLevel is the school-year band a passage is written for.
type GradeLevel string

const (
	GradeM1 GradeLevel = "M1"
	GradeM2 GradeLevel = "M2"
	GradeM3 GradeLevel = "M3"
)

func AllGradeLevels() []GradeLevel { return []GradeLevel{GradeM1, GradeM2, GradeM3} }

func ParseGradeLevel(s string) (GradeLevel, error) {
	g := GradeLevel(s)
	if !g.Valid() {
		return "", fmt.Errorf("unknown grade level %q", s)
	}
	return g, nil
}

func (g GradeLevel) Valid() bool {
	switch g {
	case GradeM1, GradeM2, GradeM3:
		return true
	}
	return false
}

func (g GradeLevel) Label() string {
	switch g {
	case GradeM1:
		return "Middle 1"
	case GradeM2:
		return "Middle 2"
	case GradeM3:
		return "Middle 3"
	}
	return string(g)
}

// Description is the audience description used in prompts.
func (g GradeLevel) Description() string {
	switch g {
	case GradeM1:
		return "Middle School Year 1 (7th grade, ages 12-13)"
	case GradeM2:
		return "Middle School Year 2 (8th grade, ages 13-14)"
	case GradeM3:
		return "Middle School Year 3 (9th grade, ages 14-15)"
	}
	return string(g)
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

func AllDifficulties() []Difficulty {
	return []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}
}

func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(s)
	if !d.Valid() {
		return "", fmt.Errorf("unknown difficulty %q", s)
	}
	return d, nil
}

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

type QuestionType string

const (
	TypeMainIdea   QuestionType = "Main Idea"
	TypeDetail     QuestionType = "Detail"
	TypeInference  QuestionType = "Inference"
	TypeVocabulary QuestionType = "Vocabulary"
)

func AllQuestionTypes() []QuestionType {
	return []QuestionType{TypeMainIdea, TypeDetail, TypeInference, TypeVocabulary}
}

func ParseQuestionType(s string) (QuestionType, error) {
	t := QuestionType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown question type %q", s)
	}
	return t, nil
}

func (t QuestionType) Valid() bool {
	switch t {
	case TypeMainIdea, TypeDetail, TypeInference, TypeVocabulary:
		return true
	}
	return false
}

// Guideline is the per-type instruction given to the model.
func (t QuestionType) Guideline() string {
	switch t {
	case TypeMainIdea:
		return "Ask about the overall topic, purpose, or central theme"
	case TypeDetail:
		return "Ask about specific facts, information explicitly stated in the passage"
	case TypeInference:
		return "Ask students to draw conclusions based on passage evidence"
	case TypeVocabulary:
		return "Test word meaning in context, provide line number reference"
	}
	return ""
}

// ParseQuestionTypes parses and de-duplicates a list of type names, keeping order.
func ParseQuestionTypes(in []string) ([]QuestionType, error) {
	out := make([]QuestionType, 0, len(in))
	seen := map[QuestionType]bool{}
	for _, s := range in {
		t, err := ParseQuestionType(s)
		if err != nil {
			return nil, err
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out, nil
}

// SameTypes compares two type lists as sets.
func SameTypes(a, b []QuestionType) bool {
	as := map[QuestionType]bool{}
	for _, t := range a {
		as[t] = true
	}
	bs := map[QuestionType]bool{}
	for _, t := range b {
		if !as[t] {
			return false
		}
		bs[t] = true
	}
	return len(as) == len(bs)
}

type ValidationStatus string

const (
	StatusPass     ValidationStatus = "PASS"
	StatusNeedsFix ValidationStatus = "NEEDS_FIX"
)

func ParseValidationStatus(s string) (ValidationStatus, error) {
	v := ValidationStatus(s)
	switch v {
	case StatusPass, StatusNeedsFix:
		return v, nil
	}
	return "", fmt.Errorf("unknown validation status %q", s)
}
