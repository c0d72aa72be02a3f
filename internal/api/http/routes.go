// Package http holds the JSON API handlers. Handlers expect the caller's
// subject and role in the request context (see auth.JWTMiddleware).
package http

import (
	"github.com/go-chi/chi/v5"

	auth "github.com/mind-engage/mindengage-qbank/internal/auth/middleware"
	"github.com/mind-engage/mindengage-qbank/internal/bank"
	"github.com/mind-engage/mindengage-qbank/internal/rbac"
	"github.com/mind-engage/mindengage-qbank/internal/storage"
)

type Deps struct {
	Bank      *bank.Service
	Generator Generator
	Users     auth.UserStore
	// Transcripts is optional; the /transcripts routes are skipped without it.
	Transcripts storage.BlobStore
}

// Mount registers every protected route on r.
func Mount(r chi.Router, d Deps) {
	r.Route("/passages", func(pr chi.Router) {
		pr.With(rbac.Require(rbac.PermPassageRead)).Get("/", ListPassagesHandler(d.Bank))
		pr.With(rbac.Require(rbac.PermPassageWrite)).Post("/", CreatePassageHandler(d.Bank))
		pr.With(rbac.Require(rbac.PermPassageRead)).Get("/{id}", GetPassageHandler(d.Bank))
		pr.With(rbac.Require(rbac.PermPassageWrite)).Patch("/{id}", UpdatePassageHandler(d.Bank))
		pr.With(rbac.Require(rbac.PermPassageWrite)).Delete("/{id}", DeletePassageHandler(d.Bank))
	})

	r.With(rbac.Require(rbac.PermGenerate)).Post("/generate", GenerateHandler(d.Generator))
	r.With(rbac.Require(rbac.PermGenerate)).Post("/generate/regenerate", RegenerateHandler(d.Generator))

	r.Route("/question-sets", func(qr chi.Router) {
		qr.With(rbac.Require(rbac.PermQSetRead)).Get("/", ListQuestionSetsHandler(d.Bank))
		qr.With(rbac.Require(rbac.PermQSetWrite)).Post("/", CreateQuestionSetHandler(d.Bank))
		qr.With(rbac.Require(rbac.PermQSetRead)).Get("/{id}", GetQuestionSetHandler(d.Bank))
		qr.With(rbac.Require(rbac.PermQSetWrite)).Patch("/{id}", PatchQuestionSetHandler(d.Bank))
		qr.With(rbac.Require(rbac.PermQSetWrite)).Delete("/{id}", DeleteQuestionSetHandler(d.Bank))
		qr.With(rbac.Require(rbac.PermQSetWrite)).Delete("/{id}/questions/{questionID}", RemoveQuestionHandler(d.Bank))
	})

	if d.Users != nil {
		r.Route("/users", func(ur chi.Router) {
			ur.With(rbac.Require(rbac.PermUsersManage)).Get("/", ListUsersHandler(d.Users))
			ur.With(rbac.Require(rbac.PermUsersManage)).Post("/bulk", BulkUpsertUsersHandler(d.Users))
			ur.With(rbac.Require(rbac.PermChangePassword)).Post("/change-password", ChangePasswordHandler(d.Users))
		})
	}

	if d.Transcripts != nil {
		r.Route("/transcripts", func(tr chi.Router) {
			tr.Use(rbac.Require(rbac.PermTranscriptRead))
			MountTranscripts(tr, d.Transcripts)
		})
	}
}
