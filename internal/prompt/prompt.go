// Package prompt builds the chat messages sent to the model. Everything here
// is a pure function of its input.
package prompt

import (
	"fmt"
	"strings"

	"github.com/mind-engage/mindengage-qbank/internal/bank"
)

type Messages struct {
	System string
	User   string
}

type Input struct {
	Passage       string
	GradeLevel    bank.GradeLevel
	Difficulty    bank.Difficulty
	Count         int
	QuestionTypes []bank.QuestionType
}

const generationSystemHead = `You are an expert English test item writer for Korean middle school students.
Your task is to create high-quality, pedagogically sound multiple-choice questions.

Return ONLY a valid JSON object with NO markdown formatting.

Required JSON Schema:
{
  "questions": [
    {
      "type": "Main Idea | Detail | Inference | Vocabulary",
      "difficulty": "Easy | Medium | Hard",
      "question_text": "string",
      "options": ["Option A", "Option B", "Option C", "Option D"],
      "correct_answer": 0,
      "evidence": "Found in Paragraph X: 'direct quote from passage' OR Inferred from Paragraph X: 'reasoning'",
      "validation_status": "PASS | NEEDS_FIX",
      "validation_note": "string or null"
    }
  ],
  "meta": {
    "grade_level": "M1 | M2 | M3",
    "difficulty": "Easy | Medium | Hard",
    "question_types": ["Main Idea", "Detail"],
    "question_count": 5
  }
}

CRITICAL RULES:
1. Output ONLY valid JSON - no markdown code blocks, no extra text
2. Each question MUST have exactly 4 options (strings)
3. correct_answer is the index (0-3) of the correct option
4. evidence format MUST be one of:
   - "Found in Paragraph X: 'exact quote from passage'"
   - "Inferred from Paragraph X: 'supporting text'"
   - "Context: 'surrounding text for vocabulary questions'"
5. All distractors (wrong options) should be plausible but clearly incorrect
6. validation_status: Use "PASS" for good questions, "NEEDS_FIX" if there are issues
7. validation_note: Only provide if status is "NEEDS_FIX", explain the issue briefly
`

const generationSystemTail = `
QUALITY STANDARDS:
- Questions should be clear, unambiguous, and appropriate for the grade level
- Distractors should test common misconceptions or partial understanding
- Evidence should directly support the correct answer
- Avoid questions that can be answered without reading the passage`

var system = buildSystem()

func buildSystem() string {
	var b strings.Builder
	b.WriteString(generationSystemHead)
	b.WriteString("\nQUESTION TYPE GUIDELINES:\n")
	for _, t := range bank.AllQuestionTypes() {
		fmt.Fprintf(&b, "- %s: %s\n", t, t.Guideline())
	}
	b.WriteString(generationSystemTail)
	return b.String()
}

func joinTypes(ts []bank.QuestionType) string {
	ss := make([]string, len(ts))
	for i, t := range ts {
		ss[i] = string(t)
	}
	return strings.Join(ss, ", ")
}

// Build returns the generation prompt. The passage is embedded verbatim.
func Build(in Input) Messages {
	grade := in.GradeLevel.Description()
	types := joinTypes(in.QuestionTypes)
	user := strings.Join([]string{
		"Generate multiple-choice reading comprehension questions from the following passage.",
		"",
		"=== GENERATION SETTINGS ===",
		fmt.Sprintf("Grade Level: %s (%s)", in.GradeLevel, grade),
		fmt.Sprintf("Difficulty: %s", in.Difficulty),
		fmt.Sprintf("Question Types: %s", types),
		fmt.Sprintf("Total Questions: %d", in.Count),
		"",
		"=== REQUIREMENTS ===",
		fmt.Sprintf("- Create exactly %d questions", in.Count),
		fmt.Sprintf("- Distribute question types: %s", types),
		fmt.Sprintf("- All questions must be at %s difficulty level", in.Difficulty),
		fmt.Sprintf("- Ensure questions are appropriate for %s", grade),
		"- Provide clear evidence from the passage for each question",
		`- Format evidence as: "Found in Paragraph X: 'quote'" or "Inferred from Paragraph X: 'text'"`,
		"",
		"=== PASSAGE ===",
		in.Passage,
		"",
		"Generate the questions now in valid JSON format.",
	}, "\n")
	return Messages{System: system, User: user}
}

// BuildReplacement asks for one question replacing prev. The model sees the
// old question so it can avoid repeating it.
func BuildReplacement(passage string, grade bank.GradeLevel, prev bank.Question) Messages {
	m := Build(Input{
		Passage:       passage,
		GradeLevel:    grade,
		Difficulty:    prev.Difficulty,
		Count:         1,
		QuestionTypes: []bank.QuestionType{prev.Type},
	})
	m.User += "\n\n=== QUESTION TO REPLACE ===\n" +
		prev.QuestionText + "\n" +
		"Write a different question of the same type and difficulty."
	return m
}

const titleSystem = `You are an assistant that generates concise, descriptive titles for English reading passages.

Your task is to create a title that:
- Accurately reflects the main topic or theme of the passage
- Is concise (maximum 200 characters)
- Is appropriate for educational content
- Uses proper capitalization and grammar

Return ONLY a valid JSON object with NO markdown formatting.

Required JSON Schema:
{
  "title": "string"
}

CRITICAL RULES:
1. Output ONLY valid JSON - no markdown code blocks, no extra text
2. The title should be clear and descriptive
3. Keep the title under 200 characters
4. Use title case (capitalize important words)
5. Do not include quotation marks around the title in the JSON value`

func BuildTitle(content string) Messages {
	user := "Generate a concise, descriptive title for the following English reading passage.\n\n" +
		"=== PASSAGE ===\n" + content + "\n\n" +
		"Generate the title now in valid JSON format."
	return Messages{System: titleSystem, User: user}
}
