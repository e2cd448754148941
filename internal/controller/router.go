package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func (c *controller) GetMux() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(c.requestIdMw)
	r.Use(c.requestLoggingMw)
	r.Use(cors.AllowAll().Handler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})

		r.Get("/ws", c.serveWS)

		r.Route("/party", func(r chi.Router) {
			r.Use(c.authMw)

			r.Post("/", c.createParty)
			r.Route("/{room-code}", func(r chi.Router) {
				r.Get("/", c.getParty)
				r.Post("/join", c.joinParty)
				r.Delete("/", c.closeParty)
			})
		})
	})

	return r
}
