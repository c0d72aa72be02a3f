package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

var ErrUserNotFound = errors.New("user not found")

type User struct {
	ID        string
	Username  string
	PassHash  string
	Role      string
	CreatedAt time.Time
}

type UserStore interface {
	FindByID(ctx context.Context, id string) (User, error)
	FindByUsername(ctx context.Context, username string) (User, error)
	// Upsert creates the user or replaces hash and role of an existing
	// username, keeping its id.
	Upsert(ctx context.Context, u User) (User, error)
	List(ctx context.Context) ([]User, error)
}

// HashPassword returns a bcrypt hash suitable for ADMIN_PASS_HASH.
func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

// SeedUser makes sure username exists with the given hash and role.
func SeedUser(ctx context.Context, users UserStore, username, passHash, role string) (User, error) {
	if username == "" || passHash == "" {
		return User{}, errors.New("seed user: username and password hash are required")
	}
	if _, err := bcrypt.Cost([]byte(passHash)); err != nil {
		return User{}, errors.New("seed user: password hash is not a bcrypt hash")
	}
	return users.Upsert(ctx, User{Username: username, PassHash: passHash, Role: role})
}

// ---- SQL ----

type SQLUsers struct{ db *sql.DB }

func NewSQLUsers(db *sql.DB) *SQLUsers { return &SQLUsers{db: db} }

func (s *SQLUsers) scan(row *sql.Row) (User, error) {
	var u User
	var created int64
	err := row.Scan(&u.ID, &u.Username, &u.PassHash, &u.Role, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	u.CreatedAt = time.Unix(0, created).UTC()
	return u, nil
}

func (s *SQLUsers) FindByID(ctx context.Context, id string) (User, error) {
	return s.scan(s.db.QueryRowContext(ctx,
		`SELECT id,username,pass_hash,role,created_at FROM users WHERE id=$1`, id))
}

func (s *SQLUsers) FindByUsername(ctx context.Context, username string) (User, error) {
	return s.scan(s.db.QueryRowContext(ctx,
		`SELECT id,username,pass_hash,role,created_at FROM users WHERE username=$1`, strings.TrimSpace(username)))
}

func (s *SQLUsers) Upsert(ctx context.Context, u User) (User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO users (id, username, pass_hash, role, created_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT(username) DO UPDATE SET pass_hash=excluded.pass_hash, role=excluded.role`,
		u.ID, u.Username, u.PassHash, u.Role, u.CreatedAt.UnixNano())
	if err != nil {
		return User{}, err
	}
	return s.FindByUsername(ctx, u.Username)
}

func (s *SQLUsers) List(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,username,pass_hash,role,created_at FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		var u User
		var created int64
		if err := rows.Scan(&u.ID, &u.Username, &u.PassHash, &u.Role, &created); err != nil {
			return nil, err
		}
		u.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, u)
	}
	return out, rows.Err()
}

// ---- Mongo ----

type MongoUsers struct{ c *mongo.Collection }

func NewMongoUsers(db *mongo.Database) *MongoUsers { return &MongoUsers{c: db.Collection("users")} }

type userDoc struct {
	ID        string    `bson:"_id"`
	Username  string    `bson:"username"`
	PassHash  string    `bson:"pass_hash"`
	Role      string    `bson:"role"`
	CreatedAt time.Time `bson:"created_at"`
}

func (s *MongoUsers) find(ctx context.Context, filter bson.M) (User, error) {
	var d userDoc
	err := s.c.FindOne(ctx, filter).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return User{ID: d.ID, Username: d.Username, PassHash: d.PassHash, Role: d.Role, CreatedAt: d.CreatedAt.UTC()}, nil
}

func (s *MongoUsers) FindByID(ctx context.Context, id string) (User, error) {
	return s.find(ctx, bson.M{"_id": id})
}

func (s *MongoUsers) FindByUsername(ctx context.Context, username string) (User, error) {
	return s.find(ctx, bson.M{"username": strings.TrimSpace(username)})
}

func (s *MongoUsers) Upsert(ctx context.Context, u User) (User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.c.UpdateOne(ctx,
		bson.M{"username": u.Username},
		bson.M{
			"$set":         bson.M{"pass_hash": u.PassHash, "role": u.Role},
			"$setOnInsert": bson.M{"_id": u.ID, "created_at": u.CreatedAt},
		},
		options.Update().SetUpsert(true))
	if err != nil {
		return User{}, err
	}
	return s.FindByUsername(ctx, u.Username)
}

func (s *MongoUsers) List(ctx context.Context) ([]User, error) {
	cur, err := s.c.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "username", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]User, len(docs))
	for i, d := range docs {
		out[i] = User{ID: d.ID, Username: d.Username, PassHash: d.PassHash, Role: d.Role, CreatedAt: d.CreatedAt.UTC()}
	}
	return out, nil
}
