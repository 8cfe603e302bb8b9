package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/contact-finder/internal/export"
	"github.com/sells-group/contact-finder/internal/model"
	"github.com/sells-group/contact-finder/internal/monitoring"
	"github.com/sells-group/contact-finder/internal/session"
	"github.com/sells-group/contact-finder/internal/store"
	"github.com/sells-group/contact-finder/internal/stream"
	"github.com/sells-group/contact-finder/internal/workunit"
)

// server holds the dependencies of the HTTP handlers.
type server struct {
	sessions    *session.Manager
	store       store.Store // may be nil
	publisher   *stream.Publisher
	lookupReady bool

	collector     *monitoring.Collector // may be nil
	lookbackHours int
	corsOrigins   []string
}

// buildRouter registers every route on a chi router.
func buildRouter(s *server) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	origins := s.corsOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Post("/search", s.handleSearch)
	r.Get("/search/stream/{id}", s.handleStream)
	r.Post("/stop-search", s.handleStop)

	r.Post("/export-csv", s.handleExportCSV)
	r.Post("/export-xlsx", s.handleExportXLSX)

	r.Get("/sessions", s.handleListSessions)
	r.Get("/sessions/{id}", s.handleGetSession)
	r.Get("/monitoring/snapshot", s.handleSnapshot)

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			zap.L().Debug("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// Request body caps. Export bodies carry a whole batch of rows.
const (
	maxSearchBody = 1 << 20
	maxExportBody = 32 << 20
)

// readJSON decodes a JSON body of at most limit bytes into v. It writes the
// error response itself and reports whether decoding succeeded.
func readJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit)).Decode(v)
	if err == nil {
		return true
	}
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	writeError(w, http.StatusBadRequest, "invalid request body")
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"live_sessions": len(s.sessions.Live()),
	})
}

type searchRequest struct {
	Domains []string `json:"domains"`
	Roles   []string `json:"roles"`
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !readJSON(w, r, maxSearchBody, &req) {
		return
	}

	units, err := workunit.Expand(req.Domains, req.Roles)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.lookupReady {
		writeError(w, http.StatusServiceUnavailable, "search provider is not configured")
		return
	}

	id, err := s.sessions.Create(units)
	if err != nil {
		zap.L().Error("create session failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not start search")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": id})
}

func (s *server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, err := s.sessions.Stream(id)
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "invalid session id")
		return
	case errors.Is(err, session.ErrAlreadyAttached):
		writeError(w, http.StatusConflict, "session already has a consumer")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := s.publisher.Serve(w, r, st); err != nil {
		zap.L().Debug("stream ended early", zap.String("session_id", id), zap.Error(err))
	}
}

func (s *server) handleStop(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	// Stop is acknowledged whatever the body or session state.
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSearchBody)).Decode(&req)
	if err == nil && req.SessionID != "" {
		if err := s.sessions.RequestStop(req.SessionID); err != nil {
			zap.L().Debug("stop ignored", zap.String("session_id", req.SessionID), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type exportRequest struct {
	Results []model.ContactRow `json:"results"`
}

func decodeExport(w http.ResponseWriter, r *http.Request) ([]model.ContactRow, bool) {
	var req exportRequest
	if !readJSON(w, r, maxExportBody, &req) {
		return nil, false
	}
	if len(req.Results) == 0 {
		writeError(w, http.StatusBadRequest, "no results to export")
		return nil, false
	}
	return req.Results, true
}

func (s *server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	rows, ok := decodeExport(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, rows); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"csv": buf.String()})
}

func (s *server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	rows, ok := decodeExport(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, rows); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", export.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", `attachment; filename="contacts.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Live    []model.SessionRecord `json:"live"`
		History []model.SessionRecord `json:"history"`
	}{Live: s.sessions.Live(), History: []model.SessionRecord{}}

	if s.store != nil {
		q := r.URL.Query()
		filter := store.SessionFilter{Status: model.SessionStatus(q.Get("status"))}
		filter.Limit, _ = strconv.Atoi(q.Get("limit"))
		filter.Offset, _ = strconv.Atoi(q.Get("offset"))

		recs, err := s.store.ListSessions(r.Context(), filter)
		if err != nil {
			zap.L().Error("list sessions failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not list sessions")
			return
		}
		if recs != nil {
			resp.History = recs
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if rec, err := s.sessions.Record(id); err == nil {
		writeJSON(w, http.StatusOK, rec)
		return
	}
	if s.store == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	rec, err := s.store.GetSession(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case err != nil:
		zap.L().Error("get session failed", zap.String("session_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load session")
	default:
		writeJSON(w, http.StatusOK, rec)
	}
}

func (s *server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.collector == nil {
		writeError(w, http.StatusNotFound, "monitoring is not enabled")
		return
	}
	snap, err := s.collector.Collect(r.Context(), s.lookbackHours)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
