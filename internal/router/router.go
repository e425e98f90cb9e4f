package router

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/centraflow/banksync-backend/internal/handlers"
	"github.com/centraflow/banksync-backend/internal/middleware"
)

func NewRouter(deps *handlers.Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(middleware.NewLoggerMiddleware(deps.Log).LoggerMiddleware)

	auth := middleware.NewMiddleware(deps.Firebase)
	r.Use(auth.FirebaseAuth)

	ch := handlers.NewConnectionHandlers(deps)
	ah := handlers.NewAccountHandlers(deps)

	r.Get("/providers", ch.ListProviders)
	r.Mount("/connections", ch.ConnectionRoutes())
	r.Mount("/accounts", ah.AccountRoutes())
	return r
}
