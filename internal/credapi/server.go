// internal/credapi/server.go
package credapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tryit/pkg/config"
	"tryit/pkg/credentials"
	"tryit/pkg/middleware"
)

// Server exposes the credential-serving endpoint consumed by the console's
// parameter resolver and the credentials-display surface. Same-origin
// surface: responses include secret fields by design.
type Server struct {
	cfg      config.Config
	log      *zap.SugaredLogger
	resolver credentials.Source
}

func NewServer(cfg config.Config, log *zap.SugaredLogger, resolver credentials.Source) *Server {
	return &Server{cfg: cfg, log: log, resolver: resolver}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(s.log))
	r.Use(middleware.DebugWriteHeader())
	r.Use(middleware.CORS(s.cfg.CORSAllowedOrigins))
	r.Use(middleware.Tracing())

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	})
	r.Get("/workspace/credentials", s.handleCredentials)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	return r
}
