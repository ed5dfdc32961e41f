package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/scango-office/gatepass/server/internal/gatepass/service"
)

type Dependencies struct {
	Logger           *slog.Logger
	Addr             string
	CORSOrigins      []string
	Engine           *service.Engine
	Registrar        *service.Registrar
	HeartbeatService *service.HeartbeatService

	// Location is the site time zone used to decide "today". Defaults to UTC.
	Location *time.Location
	// Now overrides the clock in tests.
	Now func() time.Time
}

type Server struct {
	httpServer       *http.Server
	logger           *slog.Logger
	router           chi.Router
	engine           *service.Engine
	registrar        *service.Registrar
	heartbeatService *service.HeartbeatService
	loc              *time.Location
	now              func() time.Time
}

func NewServer(d Dependencies) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	s := &Server{
		logger:           d.Logger,
		engine:           d.Engine,
		registrar:        d.Registrar,
		heartbeatService: d.HeartbeatService,
		loc:              d.Location,
		now:              d.Now,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(d.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(corsHandler(d.CORSOrigins))
	r.Use(maxBodySize(maxRequestBody))

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/heartbeat", s.handleHeartbeat)
		r.Post("/scan", s.handleScan)

		r.Post("/gates/{gateID}/scan", s.handleGateScan)
		r.Post("/gates/{gateID}/pair", s.handlePair)

		r.Post("/credentials", s.handleRegister)
		r.Get("/credentials", s.handleReport)
		r.Get("/credentials/{credentialID}/status", s.handleStatus)
		r.Get("/credentials/{credentialID}/history", s.handleHistory)
	})
	s.router = r

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// clock returns the current time in the site location.
func (s *Server) clock() time.Time {
	return s.now().In(s.loc)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
