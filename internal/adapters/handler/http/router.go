package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewVoteServiceHandler routes the vote coordinator and aggregation reader.
// Caller identity comes from the gateway-verified X-User-Id header.
func NewVoteServiceHandler(voteHandler *VoteHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api/votes", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(TrustedUserID)
			r.Post("/", voteHandler.Cast)
			r.Put("/", voteHandler.Change)
			r.Delete("/polls/{pollID}", voteHandler.Cancel)
			r.Get("/polls/{pollID}/check", voteHandler.Check)
		})

		r.Get("/polls/{pollID}/results", voteHandler.Results)
		r.Get("/polls/{pollID}/stats", voteHandler.Stats)
		r.Get("/users/{userID}/history", voteHandler.History)
		r.Post("/polls/{pollID}/cache/rebuild", voteHandler.RebuildCache)
	})

	return r
}

func NewPollServiceHandler(pollHandler *PollHandler, jwtSecret []byte) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api/polls", func(r chi.Router) {
		r.Get("/", pollHandler.ListPolls)
		r.Get("/{id}", pollHandler.GetPoll)

		r.Group(func(r chi.Router) {
			r.Use(JWTAuth(jwtSecret))
			r.Post("/", pollHandler.CreatePoll)
			r.Delete("/{id}", pollHandler.DeletePoll)
		})
	})

	return r
}

func NewIdentityServiceHandler(authHandler *AuthHandler, jwtSecret []byte) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.SignUp)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)
		r.Post("/logout", authHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(JWTAuth(jwtSecret))
			r.Delete("/me", authHandler.DeleteAccount)
		})
	})

	return r
}
