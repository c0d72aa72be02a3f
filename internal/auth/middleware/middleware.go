package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-qbank/internal/apperr"
	"github.com/mind-engage/mindengage-qbank/internal/rbac"
)

const issuer = "mindengage-qbank"

type AuthService struct {
	hmac  []byte
	ttl   time.Duration
	users UserStore
}

func NewAuthService(secret string, ttl time.Duration, users UserStore) *AuthService {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &AuthService{hmac: []byte(secret), ttl: ttl, users: users}
}

type Claims struct {
	Sub  string `json:"sub"`
	Role string `json:"role"` // "teacher" or "admin"
	jwt.RegisteredClaims
}

func (a *AuthService) IssueJWT(sub, role string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Sub:  sub,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(a.hmac)
}

func (a *AuthService) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.hmac, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	c, _ := token.Claims.(*Claims)
	if c == nil || c.Sub == "" {
		return nil, errors.New("token has no subject")
	}
	return c, nil
}

// Login checks a username/password pair and returns a signed token.
func (a *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	u, err := a.users.FindByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		// same cost as a real check so unknown names are not observable
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return "", apperr.New(apperr.KindUnauthorized, "invalid credentials")
	}
	if err != nil {
		return "", apperr.Wrap(apperr.KindDatabase, "user lookup failed", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PassHash), []byte(password)) != nil {
		return "", apperr.New(apperr.KindUnauthorized, "invalid credentials")
	}
	tok, err := a.IssueJWT(u.ID, u.Role)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "issue token", err)
	}
	return tok, nil
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.MinCost)

// POST /auth/login  { "username": "...", "password": "..." }
func LoginHandler(a *AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
			apperr.Write(w, apperr.New(apperr.KindValidation, "username and password are required"))
			return
		}
		tok, err := a.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			apperr.Write(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": tok})
	}
}

// JWTMiddleware verifies the bearer token and puts its subject and role in
// the request context.
func JWTMiddleware(a *AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				apperr.Write(w, apperr.New(apperr.KindUnauthorized, "missing bearer token"))
				return
			}
			c, err := a.Parse(strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				apperr.Write(w, apperr.Wrap(apperr.KindUnauthorized, "bad token", err))
				return
			}
			ctx := WithSubject(r.Context(), c.Sub)
			ctx = rbac.WithRole(ctx, c.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ---- subject in context ----

type ctxKey struct{}

func WithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, ctxKey{}, sub)
}

func SubjectFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(ctxKey{}).(string); ok {
		return s
	}
	return ""
}
