// Package server exposes the diary and chat services over HTTP and WebSocket.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/raphaelgruber/diarist/internal/metrics"
	"github.com/raphaelgruber/diarist/internal/models"
	"github.com/raphaelgruber/diarist/internal/service"
)

// DiaryAPI is the diary service surface the server uses.
type DiaryAPI interface {
	Synthesize(ctx context.Context, userID string, requestedDay *time.Time) (service.Outcome, error)
	GetDiary(ctx context.Context, userID string, day time.Time) (*models.Diary, error)
	CalendarEmotions(ctx context.Context, userID string, year int, month time.Month) ([]models.DayEmotion, error)
	SetDiaryTime(ctx context.Context, userID, raw string) (models.DiaryTime, error)
	OnDiaryWritten(fn service.DiaryListener)
	Location() *time.Location
}

// ChatAPI answers chat turns.
type ChatAPI interface {
	Chat(ctx context.Context, userID, message string) (service.ChatResult, error)
}

// JobAPI starts and reports background backfills.
type JobAPI interface {
	StartBackfill(userID string, from, to time.Time) (*service.Job, error)
	GetJob(id string) *service.Job
	ListJobs() []*service.Job
}

// Pinger reports store reachability for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps holds the collaborators of a Server. Health and Jobs are optional.
type Deps struct {
	Diaries       DiaryAPI
	Chat          ChatAPI
	Jobs          JobAPI
	Health        Pinger
	Metrics       *metrics.Collector
	Logger        *slog.Logger
	Timeout       time.Duration // per-request handler timeout, default 30s
	SlowThreshold time.Duration
}

// Server wires routes, middleware and the diary event hub.
type Server struct {
	diaries DiaryAPI
	chat    ChatAPI
	jobs    JobAPI
	health  Pinger
	metrics *metrics.Collector
	logger  *slog.Logger
	hub     *Hub
	router  *mux.Router
}

// New creates a server and subscribes its hub to diary writes.
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	s := &Server{
		diaries: deps.Diaries,
		chat:    deps.Chat,
		jobs:    deps.Jobs,
		health:  deps.Health,
		metrics: deps.Metrics,
		logger:  logger,
		hub:     NewHub(deps.Diaries.Location(), logger),
	}
	deps.Diaries.OnDiaryWritten(s.hub.Broadcast)
	s.router = s.routes(timeout, deps.SlowThreshold)
	return s
}

func (s *Server) routes(timeout, slow time.Duration) *mux.Router {
	root := mux.NewRouter()
	root.Use(RequestIDMiddleware, LoggingMiddleware(s.logger, slow), RecoveryMiddleware(s.logger))

	// WebSocket upgrades cannot pass through the timeout handler.
	root.HandleFunc("/ws/diary", s.handleDiarySocket).Methods(http.MethodGet)

	api := root.NewRoute().Subrouter()
	api.Use(TimeoutMiddleware(timeout))
	api.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/chat", s.handleChat).Methods(http.MethodPost)
	api.HandleFunc("/diary", s.handleGetDiary).Methods(http.MethodGet)
	api.HandleFunc("/writeDiary", s.handleWriteDiary).Methods(http.MethodPost)
	api.HandleFunc("/calendarEmotion", s.handleCalendarEmotion).Methods(http.MethodGet)
	api.HandleFunc("/diaryTime", s.handleDiaryTime).Methods(http.MethodPost)
	if s.jobs != nil {
		api.HandleFunc("/backfill", s.handleBackfill).Methods(http.MethodPost)
		api.HandleFunc("/jobs", s.handleListJobs).Methods(http.MethodGet)
		api.HandleFunc("/jobs/{id}", s.handleGetJob).Methods(http.MethodGet)
	}
	return root
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the diary event hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Close disconnects all WebSocket clients.
func (s *Server) Close() {
	s.hub.Close()
}
