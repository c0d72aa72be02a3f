package bank

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps passages and question sets in two collections. Payloads
// are stored as embedded documents.
type MongoStore struct {
	passages *mongo.Collection
	sets     *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		passages: db.Collection("passages"),
		sets:     db.Collection("question_sets"),
	}
}

type passageDoc struct {
	ID         string    `bson:"_id"`
	UserID     string    `bson:"user_id"`
	Title      string    `bson:"title"`
	TitleFold  string    `bson:"title_fold"`
	Content    string    `bson:"content"`
	GradeLevel string    `bson:"grade_level"`
	CreatedAt  time.Time `bson:"created_at"`
}

func (d passageDoc) passage() Passage {
	return Passage{
		ID:         d.ID,
		UserID:     d.UserID,
		Title:      d.Title,
		Content:    d.Content,
		GradeLevel: GradeLevel(d.GradeLevel),
		CreatedAt:  d.CreatedAt.UTC(),
	}
}

type questionDoc struct {
	ID               string   `bson:"id"`
	Type             string   `bson:"type"`
	Difficulty       string   `bson:"difficulty"`
	QuestionText     string   `bson:"question_text"`
	Options          []string `bson:"options"`
	CorrectAnswer    int      `bson:"correct_answer"`
	Evidence         string   `bson:"evidence"`
	ValidationStatus string   `bson:"validation_status"`
	ValidationNote   *string  `bson:"validation_note,omitempty"`
}

type metaDoc struct {
	GradeLevel    string   `bson:"grade_level"`
	Difficulty    string   `bson:"difficulty"`
	QuestionTypes []string `bson:"question_types"`
	QuestionCount int      `bson:"question_count"`
}

type setDoc struct {
	ID            string        `bson:"_id"`
	PassageID     string        `bson:"passage_id"`
	UserID        string        `bson:"user_id"`
	Difficulty    string        `bson:"difficulty"`
	QuestionCount int           `bson:"question_count"`
	QuestionTypes []string      `bson:"question_types"`
	Questions     []questionDoc `bson:"questions"`
	Meta          metaDoc       `bson:"meta"`
	CreatedAt     time.Time     `bson:"created_at"`
}

func toSetDoc(qs QuestionSet) setDoc {
	d := setDoc{
		ID:            qs.ID,
		PassageID:     qs.PassageID,
		UserID:        qs.UserID,
		Difficulty:    string(qs.Difficulty),
		QuestionCount: qs.QuestionCount,
		QuestionTypes: typeStrings(qs.QuestionTypes),
		Questions:     make([]questionDoc, len(qs.Payload.Questions)),
		Meta: metaDoc{
			GradeLevel:    string(qs.Payload.Meta.GradeLevel),
			Difficulty:    string(qs.Payload.Meta.Difficulty),
			QuestionTypes: typeStrings(qs.Payload.Meta.QuestionTypes),
			QuestionCount: qs.Payload.Meta.QuestionCount,
		},
		CreatedAt: qs.CreatedAt,
	}
	for i, q := range qs.Payload.Questions {
		d.Questions[i] = questionDoc{
			ID:               q.ID,
			Type:             string(q.Type),
			Difficulty:       string(q.Difficulty),
			QuestionText:     q.QuestionText,
			Options:          q.Options[:],
			CorrectAnswer:    q.CorrectAnswer,
			Evidence:         q.Evidence,
			ValidationStatus: string(q.ValidationStatus),
			ValidationNote:   q.ValidationNote,
		}
	}
	return d
}

func (d setDoc) questionSet() QuestionSet {
	qs := QuestionSet{
		ID:            d.ID,
		PassageID:     d.PassageID,
		UserID:        d.UserID,
		Difficulty:    Difficulty(d.Difficulty),
		QuestionCount: d.QuestionCount,
		QuestionTypes: questionTypes(d.QuestionTypes),
		Payload: Payload{
			Questions: make(Questions, len(d.Questions)),
			Meta: Meta{
				GradeLevel:    GradeLevel(d.Meta.GradeLevel),
				Difficulty:    Difficulty(d.Meta.Difficulty),
				QuestionTypes: questionTypes(d.Meta.QuestionTypes),
				QuestionCount: d.Meta.QuestionCount,
			},
		},
		CreatedAt: d.CreatedAt.UTC(),
	}
	for i, q := range d.Questions {
		out := Question{
			ID:               q.ID,
			Type:             QuestionType(q.Type),
			Difficulty:       Difficulty(q.Difficulty),
			QuestionText:     q.QuestionText,
			CorrectAnswer:    q.CorrectAnswer,
			Evidence:         q.Evidence,
			ValidationStatus: ValidationStatus(q.ValidationStatus),
			ValidationNote:   q.ValidationNote,
		}
		copy(out.Options[:], q.Options)
		qs.Payload.Questions[i] = out
	}
	return qs
}

func typeStrings(ts []QuestionType) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = string(t)
	}
	return out
}

func questionTypes(ss []string) []QuestionType {
	out := make([]QuestionType, len(ss))
	for i, s := range ss {
		out[i] = QuestionType(s)
	}
	return out
}

// ---- passages ----

func (s *MongoStore) ListPassages(ctx context.Context, userID string) ([]Passage, error) {
	cur, err := s.passages.Find(ctx, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []Passage{}
	for cur.Next(ctx) {
		var d passageDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, d.passage())
	}
	return out, cur.Err()
}

func (s *MongoStore) GetPassage(ctx context.Context, userID, id string) (Passage, error) {
	var d passageDoc
	err := s.passages.FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Passage{}, ErrNotFound
	}
	if err != nil {
		return Passage{}, err
	}
	return d.passage(), nil
}

func (s *MongoStore) CreatePassage(ctx context.Context, p Passage) (Passage, error) {
	_, err := s.passages.InsertOne(ctx, passageDoc{
		ID:         p.ID,
		UserID:     p.UserID,
		Title:      p.Title,
		TitleFold:  foldTitle(p.Title),
		Content:    p.Content,
		GradeLevel: string(p.GradeLevel),
		CreatedAt:  p.CreatedAt,
	})
	if err != nil {
		return Passage{}, err
	}
	return p, nil
}

func (s *MongoStore) UpdatePassage(ctx context.Context, p Passage) (Passage, error) {
	res, err := s.passages.UpdateOne(ctx,
		bson.M{"_id": p.ID, "user_id": p.UserID},
		bson.M{"$set": bson.M{"title": p.Title, "title_fold": foldTitle(p.Title), "content": p.Content, "grade_level": string(p.GradeLevel)}})
	if err != nil {
		return Passage{}, err
	}
	if res.MatchedCount == 0 {
		return Passage{}, ErrNotFound
	}
	return s.GetPassage(ctx, p.UserID, p.ID)
}

// DeletePassage is not transactional: standalone servers have no
// multi-document transactions, so sets are removed before the passage.
func (s *MongoStore) DeletePassage(ctx context.Context, userID, id string, cascade bool) error {
	if _, err := s.GetPassage(ctx, userID, id); err != nil {
		return err
	}
	filter := bson.M{"passage_id": id, "user_id": userID}
	if cascade {
		if _, err := s.sets.DeleteMany(ctx, filter); err != nil {
			return err
		}
	} else {
		n, err := s.sets.CountDocuments(ctx, bson.M{"passage_id": id})
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrPassageHasSets
		}
	}
	res, err := s.passages.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- question sets ----

func (s *MongoStore) withPassages(ctx context.Context, userID string, docs []setDoc) ([]QuestionSetWithPassage, error) {
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.PassageID)
	}
	byID := map[string]PassageSummary{}
	if len(ids) > 0 {
		cur, err := s.passages.Find(ctx, bson.M{"_id": bson.M{"$in": ids}, "user_id": userID})
		if err != nil {
			return nil, err
		}
		defer cur.Close(ctx)
		for cur.Next(ctx) {
			var p passageDoc
			if err := cur.Decode(&p); err != nil {
				return nil, err
			}
			byID[p.ID] = PassageSummary{ID: p.ID, Title: p.Title, GradeLevel: GradeLevel(p.GradeLevel)}
		}
		if err := cur.Err(); err != nil {
			return nil, err
		}
	}
	out := make([]QuestionSetWithPassage, 0, len(docs))
	for _, d := range docs {
		ps, ok := byID[d.PassageID]
		if !ok {
			continue // orphan; the SQL store's inner join drops these too
		}
		out = append(out, QuestionSetWithPassage{QuestionSet: d.questionSet(), Passage: ps})
	}
	return out, nil
}

func (s *MongoStore) ListQuestionSets(ctx context.Context, opts ListOpts) ([]QuestionSetWithPassage, error) {
	filter := bson.M{"user_id": opts.UserID}
	if opts.PassageID != "" {
		filter["passage_id"] = opts.PassageID
	}
	if len(opts.Difficulties) > 0 {
		ds := make([]string, len(opts.Difficulties))
		for i, d := range opts.Difficulties {
			ds[i] = string(d)
		}
		filter["difficulty"] = bson.M{"$in": ds}
	}
	if len(opts.QuestionTypes) > 0 {
		filter["question_types"] = bson.M{"$in": typeStrings(opts.QuestionTypes)}
	}

	// Grade and title live on the passage document.
	needPassageFilter := len(opts.GradeLevels) > 0 || strings.TrimSpace(opts.Search) != ""
	if needPassageFilter {
		pf := bson.M{"user_id": opts.UserID}
		if len(opts.GradeLevels) > 0 {
			gs := make([]string, len(opts.GradeLevels))
			for i, g := range opts.GradeLevels {
				gs[i] = string(g)
			}
			pf["grade_level"] = bson.M{"$in": gs}
		}
		if q := strings.TrimSpace(opts.Search); q != "" {
			pf["title_fold"] = bson.M{"$regex": regexp.QuoteMeta(foldTitle(q))}
		}
		cur, err := s.passages.Find(ctx, pf, options.Find().SetProjection(bson.M{"_id": 1}))
		if err != nil {
			return nil, err
		}
		var ids []string
		for cur.Next(ctx) {
			var p struct {
				ID string `bson:"_id"`
			}
			if err := cur.Decode(&p); err != nil {
				cur.Close(ctx)
				return nil, err
			}
			ids = append(ids, p.ID)
		}
		cur.Close(ctx)
		if len(ids) == 0 {
			return []QuestionSetWithPassage{}, nil
		}
		if opts.PassageID != "" {
			filter["passage_id"] = bson.M{"$eq": opts.PassageID, "$in": ids}
		} else {
			filter["passage_id"] = bson.M{"$in": ids}
		}
	}

	fo := options.Find()
	titleSort := opts.Sort == SortTitleAsc || opts.Sort == SortTitleDesc
	switch opts.Sort {
	case SortDateAsc:
		fo.SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	default:
		fo.SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	}
	if opts.Limit > 0 && !titleSort {
		fo.SetLimit(int64(opts.Limit)).SetSkip(int64(opts.Offset))
	}

	cur, err := s.sets.Find(ctx, filter, fo)
	if err != nil {
		return nil, err
	}
	var docs []setDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out, err := s.withPassages(ctx, opts.UserID, docs)
	if err != nil {
		return nil, err
	}
	if titleSort {
		sortByTitle(out, opts.Sort == SortTitleDesc)
		out = page(out, opts.Limit, opts.Offset)
	}
	return out, nil
}

func (s *MongoStore) GetQuestionSet(ctx context.Context, userID, id string) (QuestionSetWithPassage, error) {
	var d setDoc
	err := s.sets.FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return QuestionSetWithPassage{}, ErrNotFound
	}
	if err != nil {
		return QuestionSetWithPassage{}, err
	}
	out, err := s.withPassages(ctx, userID, []setDoc{d})
	if err != nil {
		return QuestionSetWithPassage{}, err
	}
	if len(out) == 0 {
		return QuestionSetWithPassage{}, ErrNotFound
	}
	return out[0], nil
}

func (s *MongoStore) CreateQuestionSet(ctx context.Context, qs QuestionSet) (QuestionSet, error) {
	if _, err := s.GetPassage(ctx, qs.UserID, qs.PassageID); err != nil {
		return QuestionSet{}, err
	}
	if _, err := s.sets.InsertOne(ctx, toSetDoc(qs)); err != nil {
		return QuestionSet{}, err
	}
	return qs, nil
}

func (s *MongoStore) UpdateQuestionSet(ctx context.Context, qs QuestionSet) (QuestionSet, error) {
	d := toSetDoc(qs)
	res, err := s.sets.UpdateOne(ctx, bson.M{"_id": qs.ID, "user_id": qs.UserID}, bson.M{"$set": bson.M{
		"difficulty":     d.Difficulty,
		"question_count": d.QuestionCount,
		"question_types": d.QuestionTypes,
		"questions":      d.Questions,
		"meta":           d.Meta,
	}})
	if err != nil {
		return QuestionSet{}, err
	}
	if res.MatchedCount == 0 {
		return QuestionSet{}, ErrNotFound
	}
	return qs, nil
}

func (s *MongoStore) DeleteQuestionSet(ctx context.Context, userID, id string) error {
	res, err := s.sets.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
