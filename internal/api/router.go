package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/inbox/internal/noteservice"
)

// Options configures NewRouter.
type Options struct {
	AuthEnabled bool
	Token       string
	CORSOrigins []string
	// Events, if non-nil, is mounted at GET /events behind auth.
	Events http.Handler
}

// NewRouter creates a chi router with all inbox routes. It is meant to be
// mounted under /inbox.
func NewRouter(svc *noteservice.Service, opts Options) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(CORSMiddleware(opts.CORSOrigins))
	r.Use(AuthMiddleware(opts.AuthEnabled, opts.Token))

	r.Route("/notes", func(r chi.Router) {
		r.Get("/", h.ListNotes)
		r.Post("/", h.CreateNote)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetNote)
			r.Put("/", h.UpdateNote)
			r.Delete("/", h.DeleteNote)
			r.Get("/comments", h.ListComments)
			r.Post("/comments", h.AddComment)
		})
	})

	r.Route("/tags", func(r chi.Router) {
		r.Get("/", h.ChildTags)
		r.Get("/all", h.AllTags)
		r.Get("/detailed", h.DetailedTags)
		r.Get("/search", h.SearchTags)
	})

	if opts.Events != nil {
		r.Get("/events", opts.Events.ServeHTTP)
	}

	return r
}
