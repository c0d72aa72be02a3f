package bank

import (
	"context"
	"errors"
	"sort"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrPassageHasSets = errors.New("passage has question sets")
)

type Sort string

const (
	SortDateDesc  Sort = "date-desc"
	SortDateAsc   Sort = "date-asc"
	SortTitleAsc  Sort = "title-asc"
	SortTitleDesc Sort = "title-desc"
)

func ParseSort(s string) Sort {
	switch Sort(s) {
	case SortDateAsc, SortTitleAsc, SortTitleDesc:
		return Sort(s)
	}
	return SortDateDesc
}

// ListOpts filters the question bank listing. Empty slices mean "any".
type ListOpts struct {
	UserID        string
	PassageID     string
	Difficulties  []Difficulty
	GradeLevels   []GradeLevel
	QuestionTypes []QuestionType // matches sets containing at least one of these
	Search        string         // case-insensitive substring of the passage title
	Sort          Sort
	Limit         int
	Offset        int
}

// sortByTitle orders by passage title, newest first within a title.
func sortByTitle(sets []QuestionSetWithPassage, desc bool) {
	sort.SliceStable(sets, func(i, j int) bool {
		a, b := sets[i], sets[j]
		if a.Passage.Title != b.Passage.Title {
			if desc {
				return a.Passage.Title > b.Passage.Title
			}
			return a.Passage.Title < b.Passage.Title
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}

func page(sets []QuestionSetWithPassage, limit, offset int) []QuestionSetWithPassage {
	if limit <= 0 {
		return sets
	}
	if offset >= len(sets) {
		return []QuestionSetWithPassage{}
	}
	end := offset + limit
	if end > len(sets) {
		end = len(sets)
	}
	return sets[offset:end]
}

// Store is the persistence boundary. Every method takes the owning user id
// and treats records of other users as missing.
type Store interface {
	ListPassages(ctx context.Context, userID string) ([]Passage, error)
	GetPassage(ctx context.Context, userID, id string) (Passage, error)
	CreatePassage(ctx context.Context, p Passage) (Passage, error)
	UpdatePassage(ctx context.Context, p Passage) (Passage, error)
	// DeletePassage removes the passage; with cascade it also removes its
	// question sets, otherwise it fails with ErrPassageHasSets when any exist.
	DeletePassage(ctx context.Context, userID, id string, cascade bool) error

	ListQuestionSets(ctx context.Context, opts ListOpts) ([]QuestionSetWithPassage, error)
	GetQuestionSet(ctx context.Context, userID, id string) (QuestionSetWithPassage, error)
	CreateQuestionSet(ctx context.Context, qs QuestionSet) (QuestionSet, error)
	UpdateQuestionSet(ctx context.Context, qs QuestionSet) (QuestionSet, error)
	DeleteQuestionSet(ctx context.Context, userID, id string) error
}
