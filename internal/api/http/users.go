package http

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-qbank/internal/apperr"
	auth "github.com/mind-engage/mindengage-qbank/internal/auth/middleware"
	"github.com/mind-engage/mindengage-qbank/internal/rbac"
)

const (
	minPasswordLen = 8
	// bcrypt rejects longer input with ErrPasswordTooLong.
	maxPasswordLen = 72
)

type userRow struct {
	Username string `json:"username"`
	Role     string `json:"role"` // defaults to teacher
	Password string `json:"password"`
}

type userOut struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// BulkUpsertUsersHandler creates or updates teacher accounts. It accepts a
// JSON array or a multipart CSV upload (file=, columns username,role,password).
func BulkUpsertUsersHandler(users auth.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := readUserRows(w, r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := checkUserRows(rows); err != nil {
			writeError(w, r, err)
			return
		}
		out := make([]userOut, 0, len(rows))
		for _, row := range rows {
			hash, err := bcrypt.GenerateFromPassword([]byte(row.Password), bcrypt.DefaultCost)
			if err != nil {
				writeError(w, r, apperr.Wrap(apperr.KindInternal, "hash password", err))
				return
			}
			u, err := users.Upsert(r.Context(), auth.User{Username: row.Username, PassHash: string(hash), Role: row.Role})
			if err != nil {
				writeError(w, r, apperr.Wrap(apperr.KindDatabase, "Failed to save user", err))
				return
			}
			out = append(out, toUserOut(u))
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": out})
	}
}

func readUserRows(w http.ResponseWriter, r *http.Request) ([]userRow, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		f, _, err := r.FormFile("file")
		if err != nil {
			return nil, apperr.New(apperr.KindValidation, "file required")
		}
		defer f.Close()
		rows, err := parseCSV(f)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, "bad csv: "+err.Error(), err)
		}
		return rows, nil
	}
	raw, err := readBody(w, r)
	if err != nil {
		return nil, err
	}
	var rows []userRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "expected JSON array or multipart file", err)
	}
	return rows, nil
}

func parseCSV(r io.Reader) ([]userRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	hdr, err := cr.Read()
	if err != nil {
		return nil, err
	}
	idx := map[string]int{}
	for i, h := range hdr {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, k := range []string{"username", "password"} {
		if _, ok := idx[k]; !ok {
			return nil, errors.New("missing column: " + k)
		}
	}
	var rows []userRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		row := userRow{Username: rec[idx["username"]], Password: rec[idx["password"]]}
		if i, ok := idx["role"]; ok {
			row.Role = rec[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// checkUserRows normalises roles in place and rejects the whole batch on the
// first bad row.
func checkUserRows(rows []userRow) error {
	if len(rows) == 0 {
		return apperr.New(apperr.KindValidation, "no users given")
	}
	for i := range rows {
		row := &rows[i]
		row.Username = strings.TrimSpace(row.Username)
		row.Role = strings.ToLower(strings.TrimSpace(row.Role))
		if row.Role == "" {
			row.Role = rbac.RoleTeacher
		}
		field := fmt.Sprintf("%d", i)
		switch {
		case row.Username == "":
			return apperr.WithDetails(apperr.KindValidation, "username required", map[string][]string{field + ".username": {"required"}})
		case row.Role != rbac.RoleTeacher && row.Role != rbac.RoleAdmin:
			return apperr.WithDetails(apperr.KindValidation, "invalid role: "+row.Role, map[string][]string{field + ".role": {"must be teacher or admin"}})
		case len(row.Password) < minPasswordLen:
			return apperr.WithDetails(apperr.KindValidation, "password too short",
				map[string][]string{field + ".password": {fmt.Sprintf("at least %d characters", minPasswordLen)}})
		case len(row.Password) > maxPasswordLen:
			return apperr.WithDetails(apperr.KindValidation, "password too long",
				map[string][]string{field + ".password": {fmt.Sprintf("at most %d bytes", maxPasswordLen)}})
		}
	}
	return nil
}

func ListUsersHandler(users auth.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := strings.TrimSpace(r.URL.Query().Get("role"))
		list, err := users.List(r.Context())
		if err != nil {
			writeError(w, r, apperr.Wrap(apperr.KindDatabase, "Failed to list users", err))
			return
		}
		out := make([]userOut, 0, len(list))
		for _, u := range list {
			if role == "" || u.Role == role {
				out = append(out, toUserOut(u))
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": out})
	}
}

type changePasswordReq struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func ChangePasswordHandler(users auth.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := subject(w, r)
		if !ok {
			return
		}
		var req changePasswordReq
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil {
			writeError(w, r, apperr.Wrap(apperr.KindValidation, "Invalid JSON body", err))
			return
		}
		if len(req.NewPassword) < minPasswordLen {
			writeError(w, r, apperr.WithDetails(apperr.KindValidation, "new password too short",
				map[string][]string{"new_password": {fmt.Sprintf("at least %d characters", minPasswordLen)}}))
			return
		}
		if len(req.NewPassword) > maxPasswordLen {
			writeError(w, r, apperr.WithDetails(apperr.KindValidation, "new password too long",
				map[string][]string{"new_password": {fmt.Sprintf("at most %d bytes", maxPasswordLen)}}))
			return
		}

		u, err := users.FindByID(r.Context(), userID)
		if errors.Is(err, auth.ErrUserNotFound) {
			writeError(w, r, apperr.Wrap(apperr.KindNotFound, "user not found", err))
			return
		}
		if err != nil {
			writeError(w, r, apperr.Wrap(apperr.KindDatabase, "user lookup failed", err))
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(u.PassHash), []byte(req.OldPassword)) != nil {
			writeError(w, r, apperr.New(apperr.KindForbidden, "incorrect old password"))
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			writeError(w, r, apperr.Wrap(apperr.KindInternal, "hash password", err))
			return
		}
		u.PassHash = string(hash)
		if _, err := users.Upsert(r.Context(), u); err != nil {
			writeError(w, r, apperr.Wrap(apperr.KindDatabase, "Failed to save user", err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func toUserOut(u auth.User) userOut {
	return userOut{ID: u.ID, Username: u.Username, Role: u.Role, CreatedAt: u.CreatedAt}
}
