package server

import (
	"fmt"
	"net/http"
	"time"

	httpLogger "github.com/chi-middleware/logrus-logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"

	"github.com/smarthealth/medquery/pkg/auth"
	"github.com/smarthealth/medquery/pkg/models"
	"github.com/smarthealth/medquery/pkg/rag"
)

const ReadHeaderTimeout = 5 * time.Second

// Create creates a new HTTP server with the given app state
func Create(appState *models.AppState) *http.Server {
	router := setupRouter(appState)
	return &http.Server{
		Addr: fmt.Sprintf(
			"%s:%d", appState.Config.Server.Host, appState.Config.Server.Port,
		),
		Handler:           router,
		ReadHeaderTimeout: ReadHeaderTimeout,
	}
}

func setupRouter(appState *models.AppState) *chi.Mux {
	router := chi.NewRouter()
	router.Use(httpLogger.Logger("router", log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(SendVersion)
	router.Use(middleware.Heartbeat("/healthz"))

	if appState.Config.Auth.Required {
		log.Info("JWT authentication required")
		router.Use(auth.JWTVerifier(appState.Config))
		router.Use(jwtauth.Authenticator)
	}

	pipeline := rag.NewQueryPipeline(appState)
	indexer := rag.NewRecordIndexer(appState.EmbeddingsClient, appState.RecordIndex)

	router.Route("/api/v1", func(r chi.Router) {
		// Question-answering route
		r.Post("/query", QueryHandler(appState, pipeline))
		// Record ingestion route
		r.Post("/records", IndexRecordHandler(indexer))
	})

	return router
}
