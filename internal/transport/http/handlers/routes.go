package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/vedran77/relay/internal/transport/http/middleware"
)

type RouterDeps struct {
	Logger         *zap.Logger
	JWTSecret      string
	AllowedOrigins []string

	Auth     *AuthHandler
	Users    *UserHandler
	Chats    *ChatHandler
	Messages *MessageHandler

	// WS serves the socket upgrade at /ws. Optional.
	WS http.Handler
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})

	if d.WS != nil {
		r.Method(http.MethodGet, "/ws", d.WS)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", d.Auth.Register)
		r.Post("/auth/login", d.Auth.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(d.JWTSecret))

			r.Get("/users", d.Users.Search)

			r.Post("/chats", d.Chats.Access)
			r.Get("/chats", d.Chats.List)
			r.Post("/chats/group", d.Chats.CreateGroup)
			r.Put("/chats/{id}/name", d.Chats.Rename)
			r.Put("/chats/{id}/members", d.Chats.AddMember)
			r.Delete("/chats/{id}/members/{uid}", d.Chats.RemoveMember)
			r.Delete("/chats/{id}", d.Chats.Delete)

			r.Post("/chats/{id}/messages", d.Messages.Send)
			r.Get("/chats/{id}/messages", d.Messages.List)
			r.Delete("/messages/{id}", d.Messages.Delete)
			r.Post("/messages/bulk-delete", d.Messages.BulkDelete)
		})
	})

	return r
}
