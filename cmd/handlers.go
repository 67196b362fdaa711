package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/config"
	"github.com/sells-group/prospect-cli/internal/contacts"
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/prospect"
	"github.com/sells-group/prospect-cli/internal/questions"
	"github.com/sells-group/prospect-cli/internal/ratelimit"
	"github.com/sells-group/prospect-cli/internal/store"
)

const maxBodyBytes = 1 << 20

// errorBody is the JSON error shape of every API endpoint.
type errorBody struct {
	Step    contacts.Step `json:"step"`
	Error   string        `json:"error"`
	Details any           `json:"details,omitempty"`
}

type apiServer struct {
	svc       *prospect.Service
	questions *questions.Generator
}

// newRouter builds the HTTP handler for the serve command.
func newRouter(env *appEnv, sc config.ServerConfig) http.Handler {
	s := &apiServer{svc: env.Service, questions: env.Questions}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: sc.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"X-Run-ID", "Retry-After"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	limiter := ratelimit.New(sc.RateLimitPerMin, sc.RateLimitBurst, ratelimit.WithMaxKeys(sc.RateLimitClients))
	r.Route("/api", func(r chi.Router) {
		r.Use(limiter.Middleware(ratelimit.ClientIP))
		r.Post("/people", s.handlePeople)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Post("/questions", s.handleQuestions)
	})

	return r
}

func (s *apiServer) handlePeople(w http.ResponseWriter, r *http.Request) {
	var req contacts.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeStepError(w, contacts.ValidationError("Invalid JSON body", err))
		return
	}

	out, err := s.svc.Search(r.Context(), req)
	if out != nil && out.RunID != "" {
		w.Header().Set("X-Run-ID", out.RunID)
	}
	if err != nil {
		writeStepError(w, contacts.AsStepError(err))
		return
	}
	writeJSON(w, http.StatusOK, out.Result)
}

func (s *apiServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{
		Status: model.RunStatus(q.Get("status")),
		Title:  q.Get("title"),
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, contacts.StepValidate, "limit must be an integer")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, contacts.StepValidate, "offset must be an integer")
		return
	}

	runs, err := s.svc.Runs(r.Context(), filter)
	if err != nil {
		writeHistoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *apiServer) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.svc.Run(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeHistoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *apiServer) handleQuestions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Goal  string `json:"goal"`
		Count int    `json:"count"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, contacts.StepValidate, "Invalid JSON body")
		return
	}
	if s.questions == nil {
		writeError(w, http.StatusInternalServerError, contacts.StepInternal, "question generation api key is not configured")
		return
	}

	qs, err := s.questions.Generate(r.Context(), req.Goal, req.Count)
	switch {
	case eris.Is(err, questions.ErrEmptyGoal):
		writeError(w, http.StatusBadRequest, contacts.StepValidate, "A research goal is required")
	case err != nil:
		zap.L().Warn("questions: generation failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, contacts.StepInternal, "question generation failed")
	default:
		writeJSON(w, http.StatusOK, map[string]any{"questions": qs})
	}
}

func writeHistoryError(w http.ResponseWriter, err error) {
	switch {
	case eris.Is(err, prospect.ErrHistoryDisabled):
		writeError(w, http.StatusServiceUnavailable, contacts.StepInternal, "run history is disabled")
	case eris.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, contacts.StepValidate, "run not found")
	default:
		zap.L().Error("runs: read failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, contacts.StepInternal, "failed to read run history")
	}
}

func writeStepError(w http.ResponseWriter, se *contacts.StepError) {
	writeJSON(w, se.Status, errorBody{Step: se.Step, Error: se.Message, Details: se.Details})
}

func writeError(w http.ResponseWriter, status int, step contacts.Step, msg string) {
	writeJSON(w, status, errorBody{Step: step, Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response failed", zap.Error(err))
	}
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

// requestLogger logs every request with its status and duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
