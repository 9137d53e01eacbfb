// Package uihost exposes the client's view state over a small local HTTP
// surface. Each GET returns a view snapshot, each POST/PUT/DELETE runs a view
// action, and every response uses the same success/data/message envelope the
// backend speaks. Any request counts as user activity and refreshes the
// session windows.
package uihost

import (
	"github.com/go-chi/chi/v5"

	"raharpa/internal/app"
	"raharpa/internal/pkg/logger"
)

// Server maps the local UI routes onto the application core.
type Server struct {
	app *app.App
	log *logger.Logger
}

// NewServer creates the UI host in front of an assembled application core.
func NewServer(a *app.App, l *logger.Logger) *Server {
	return &Server{app: a, log: l}
}

// Router assembles the UI host routes.
func (s *Server) Router() chi.Router {
	router := chi.NewRouter()
	router.Use(s.log.WithLogging())
	router.Use(s.withActivity)

	router.Route("/ui", func(r chi.Router) {
		r.Get("/session", s.sessionState)
		r.Post("/login", s.userLogin)
		r.Post("/logout", s.userLogout)
		r.Post("/admin/login", s.adminLogin)
		r.Post("/admin/logout", s.adminLogout)
		r.Get("/admin/profile", s.adminProfile)
		r.Put("/admin/profile", s.adminProfileUpdate)

		r.Get("/dashboard", s.dashboardSnapshot)

		r.Get("/items", s.itemsSnapshot)
		r.Post("/items", s.itemCreate)
		r.Put("/items/{itemID}", s.itemUpdate)
		r.Delete("/items/{itemID}", s.itemRemove)
		r.Post("/items/{itemID}/send", s.itemSend)

		r.Get("/orders", s.ordersSnapshot)
		r.Post("/orders", s.orderCreate)
		r.Patch("/orders/{orderID}/status", s.orderUpdateStatus)
		r.Delete("/orders/{orderID}", s.orderRemove)

		r.Get("/users", s.usersSnapshot)
		r.Get("/users/{userID}/orders", s.userOrders)
		r.Post("/users/{userID}/force-login", s.userForceLogin)
		r.Delete("/users/{userID}", s.userRemove)

		r.Get("/reports", s.reportsSnapshot)

		r.Get("/chat", s.adminChatSnapshot)
		r.Post("/chat/{chatID}/open", s.adminChatOpen)
		r.Post("/chat/{chatID}/send", s.adminChatSend)
		r.Post("/chat/{chatID}/typing", s.adminChatTyping)

		r.Get("/me/chat", s.userChatSnapshot)
		r.Post("/me/messages", s.userChatSend)
		r.Post("/me/upload", s.userChatUpload)
		r.Post("/me/typing", s.userChatTyping)
	})

	return router
}
