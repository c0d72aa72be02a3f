package bank

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

// ---- passages ----

const passageCols = `id,user_id,title,content,grade_level,created_at`

func scanPassage(row interface{ Scan(...any) error }) (Passage, error) {
	var p Passage
	var grade string
	var created int64
	if err := row.Scan(&p.ID, &p.UserID, &p.Title, &p.Content, &grade, &created); err != nil {
		return Passage{}, err
	}
	p.GradeLevel = GradeLevel(grade)
	p.CreatedAt = time.Unix(0, created).UTC()
	return p, nil
}

func (s *SQLStore) ListPassages(ctx context.Context, userID string) ([]Passage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+passageCols+` FROM passages WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Passage{}
	for rows.Next() {
		p, err := scanPassage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetPassage(ctx context.Context, userID, id string) (Passage, error) {
	p, err := scanPassage(s.db.QueryRowContext(ctx,
		`SELECT `+passageCols+` FROM passages WHERE id=$1 AND user_id=$2`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return Passage{}, ErrNotFound
	}
	return p, err
}

func (s *SQLStore) CreatePassage(ctx context.Context, p Passage) (Passage, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO passages (`+passageCols+`,title_fold) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		p.ID, p.UserID, p.Title, p.Content, string(p.GradeLevel), p.CreatedAt.UnixNano(), foldTitle(p.Title))
	if err != nil {
		return Passage{}, err
	}
	return p, nil
}

func (s *SQLStore) UpdatePassage(ctx context.Context, p Passage) (Passage, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE passages SET title=$1, title_fold=$2, content=$3, grade_level=$4 WHERE id=$5 AND user_id=$6`,
		p.Title, foldTitle(p.Title), p.Content, string(p.GradeLevel), p.ID, p.UserID)
	if err != nil {
		return Passage{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Passage{}, ErrNotFound
	}
	return s.GetPassage(ctx, p.UserID, p.ID)
}

func (s *SQLStore) DeletePassage(ctx context.Context, userID, id string, cascade bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exist int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM passages WHERE id=$1 AND user_id=$2`, id, userID).Scan(&exist); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if cascade {
		if _, err := tx.ExecContext(ctx, `DELETE FROM question_sets WHERE passage_id=$1 AND user_id=$2`, id, userID); err != nil {
			return err
		}
	} else {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM question_sets WHERE passage_id=$1`, id).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return ErrPassageHasSets
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM passages WHERE id=$1 AND user_id=$2`, id, userID); err != nil {
		return err
	}
	return tx.Commit()
}

// foldTitle is the case-folded title both stores search on.
func foldTitle(title string) string { return strings.ToLower(title) }

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likeContains matches s literally anywhere; pair it with ESCAPE '\'.
func likeContains(s string) string { return "%" + likeEscaper.Replace(s) + "%" }

// ---- question sets ----

const setCols = `q.id,q.passage_id,q.user_id,q.difficulty,q.question_count,q.question_types,q.payload,q.created_at,p.title,p.grade_level`

func scanSet(row interface{ Scan(...any) error }) (QuestionSetWithPassage, error) {
	var out QuestionSetWithPassage
	var diff, types, payload, grade string
	var created int64
	if err := row.Scan(&out.ID, &out.PassageID, &out.UserID, &diff, &out.QuestionCount,
		&types, &payload, &created, &out.Passage.Title, &grade); err != nil {
		return QuestionSetWithPassage{}, err
	}
	out.Difficulty = Difficulty(diff)
	out.CreatedAt = time.Unix(0, created).UTC()
	out.Passage.ID = out.PassageID
	out.Passage.GradeLevel = GradeLevel(grade)
	if err := json.Unmarshal([]byte(types), &out.QuestionTypes); err != nil {
		return QuestionSetWithPassage{}, fmt.Errorf("decode question_types: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &out.Payload); err != nil {
		return QuestionSetWithPassage{}, fmt.Errorf("decode payload: %w", err)
	}
	return out, nil
}

func (s *SQLStore) ListQuestionSets(ctx context.Context, opts ListOpts) ([]QuestionSetWithPassage, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	where = append(where, "q.user_id="+arg(opts.UserID))
	if opts.PassageID != "" {
		where = append(where, "q.passage_id="+arg(opts.PassageID))
	}
	if len(opts.Difficulties) > 0 {
		ph := make([]string, len(opts.Difficulties))
		for i, d := range opts.Difficulties {
			ph[i] = arg(string(d))
		}
		where = append(where, "q.difficulty IN ("+strings.Join(ph, ",")+")")
	}
	if len(opts.GradeLevels) > 0 {
		ph := make([]string, len(opts.GradeLevels))
		for i, g := range opts.GradeLevels {
			ph[i] = arg(string(g))
		}
		where = append(where, "p.grade_level IN ("+strings.Join(ph, ",")+")")
	}
	if len(opts.QuestionTypes) > 0 {
		// question_types is a JSON array of strings; match the quoted member.
		ors := make([]string, len(opts.QuestionTypes))
		for i, t := range opts.QuestionTypes {
			ors[i] = "q.question_types LIKE " + arg(`%"`+string(t)+`"%`)
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}
	if q := strings.TrimSpace(opts.Search); q != "" {
		where = append(where, "p.title_fold LIKE "+arg(likeContains(foldTitle(q)))+` ESCAPE '\'`)
	}

	sqlStr := `SELECT ` + setCols + `
		  FROM question_sets q
		  JOIN passages p ON p.id=q.passage_id
		 WHERE ` + strings.Join(where, " AND ")

	switch opts.Sort {
	case SortDateAsc:
		sqlStr += ` ORDER BY q.created_at ASC, q.id ASC`
	case SortTitleAsc:
		sqlStr += ` ORDER BY p.title ASC, q.created_at DESC`
	case SortTitleDesc:
		sqlStr += ` ORDER BY p.title DESC, q.created_at DESC`
	default:
		sqlStr += ` ORDER BY q.created_at DESC, q.id DESC`
	}
	if opts.Limit > 0 {
		sqlStr += ` LIMIT ` + arg(opts.Limit) + ` OFFSET ` + arg(opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []QuestionSetWithPassage{}
	for rows.Next() {
		qs, err := scanSet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, qs)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetQuestionSet(ctx context.Context, userID, id string) (QuestionSetWithPassage, error) {
	qs, err := scanSet(s.db.QueryRowContext(ctx, `SELECT `+setCols+`
		  FROM question_sets q
		  JOIN passages p ON p.id=q.passage_id
		 WHERE q.id=$1 AND q.user_id=$2`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return QuestionSetWithPassage{}, ErrNotFound
	}
	return qs, err
}

func (s *SQLStore) CreateQuestionSet(ctx context.Context, qs QuestionSet) (QuestionSet, error) {
	tj, pj, err := encodeSet(qs)
	if err != nil {
		return QuestionSet{}, err
	}
	var exist int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM passages WHERE id=$1 AND user_id=$2`, qs.PassageID, qs.UserID).Scan(&exist); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return QuestionSet{}, ErrNotFound
		}
		return QuestionSet{}, err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO question_sets
		(id,passage_id,user_id,difficulty,question_count,question_types,payload,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		qs.ID, qs.PassageID, qs.UserID, string(qs.Difficulty), qs.QuestionCount, tj, pj, qs.CreatedAt.UnixNano())
	if err != nil {
		return QuestionSet{}, err
	}
	return qs, nil
}

func (s *SQLStore) UpdateQuestionSet(ctx context.Context, qs QuestionSet) (QuestionSet, error) {
	tj, pj, err := encodeSet(qs)
	if err != nil {
		return QuestionSet{}, err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE question_sets
		   SET difficulty=$1, question_count=$2, question_types=$3, payload=$4
		 WHERE id=$5 AND user_id=$6`,
		string(qs.Difficulty), qs.QuestionCount, tj, pj, qs.ID, qs.UserID)
	if err != nil {
		return QuestionSet{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return QuestionSet{}, ErrNotFound
	}
	return qs, nil
}

func (s *SQLStore) DeleteQuestionSet(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM question_sets WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeSet(qs QuestionSet) (types, payload string, err error) {
	tj, err := json.Marshal(qs.QuestionTypes)
	if err != nil {
		return "", "", err
	}
	pj, err := json.Marshal(qs.Payload)
	if err != nil {
		return "", "", err
	}
	return string(tj), string(pj), nil
}
