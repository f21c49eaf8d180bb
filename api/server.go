package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/fabfab/grant-drafter/corpus"
	"github.com/fabfab/grant-drafter/database"
	"github.com/fabfab/grant-drafter/drafting"
	"github.com/fabfab/grant-drafter/elicitation"
	"github.com/fabfab/grant-drafter/embeddings"
	"github.com/fabfab/grant-drafter/ingestion"
	"github.com/fabfab/grant-drafter/knowledge"
	"github.com/fabfab/grant-drafter/llm"
	"github.com/fabfab/grant-drafter/storage"
)

const (
	maxRequestBytes     = 64 << 20
	defaultHistoryLimit = 20
)

// Deps are the pipeline services the HTTP layer drives. Applications,
// Publisher, Embedder, Documents and Graph are optional.
type Deps struct {
	Ingestion    *ingestion.Service
	Synthesizer  elicitation.QuestionSource
	Sessions     *elicitation.Store
	Drafter      *drafting.Drafter
	Budget       *drafting.BudgetAnalyzer
	Publisher    *drafting.Publisher
	Applications database.ApplicationStore
	Embedder     embeddings.Embedder
	Documents    *storage.LocalStore
	Graph        neo4j.DriverWithContext
}

// Server exposes the grant pipeline over HTTP.
type Server struct {
	deps    Deps
	logger  *zap.Logger
	handler http.Handler
}

// New constructs a Server. Sessions defaults to a fresh in-memory store.
func New(deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Sessions == nil {
		deps.Sessions = elicitation.NewStore()
	}

	s := &Server{deps: deps, logger: logger}
	s.handler = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(middleware.RequestSize(maxRequestBytes))

	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, errors.New("not found"))
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/openapi.yaml", s.handleOpenAPI)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/extract", s.handleExtract)
		r.Post("/budget", s.handleBudget)
		r.Post("/clear", s.handleClear)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleCreateSession)
			r.Get("/{id}", s.handleGetSession)
			r.Put("/{id}", s.handleResubmitSession)
			r.Delete("/{id}", s.handleDeleteSession)
			r.Post("/{id}/answers", s.handleAnswer)
			r.Post("/{id}/draft", s.handleDraft)
		})

		r.Get("/applications", s.handleListApplications)
		r.Get("/applications/similar", s.handleSimilarApplications)
	})

	if s.deps.Documents != nil {
		r.Handle("/documents/*", http.StripPrefix("/documents", s.deps.Documents.Handler()))
	}
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/yaml; charset=utf-8")
	w.Header().Set("Content-Disposition", "inline; filename=\"openapi.yaml\"")
	_, _ = w.Write(openAPISpecYAML)
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ingestion == nil {
		s.writeError(w, http.StatusServiceUnavailable, errors.New("ingestion is not configured"))
		return
	}

	var req extractRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	src, ok := req.Source.attachment()
	if !ok {
		s.writeError(w, http.StatusBadRequest, errors.New("source requires data or a link"))
		return
	}

	result := s.deps.Ingestion.Extract(r.Context(), ingestion.AttachmentLabel(src), src)
	s.writeJSON(w, http.StatusOK, toExtractionResponse(result, true))
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ingestion == nil || s.deps.Synthesizer == nil {
		s.writeError(w, http.StatusServiceUnavailable, errors.New("pipeline is not configured"))
		return
	}

	var req submissionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	ctx := r.Context()
	extracted := s.deps.Ingestion.ExtractSubmission(ctx, req.submission())
	inputs := corpus.NewInputs(req.Company, req.Grant, req.Budget, extracted)
	sess := s.deps.Sessions.Create(strings.TrimSpace(req.UserID), inputs)

	var resp sessionResponse
	err := s.deps.Sessions.With(ctx, sess.ID, func(ctx context.Context, sess *elicitation.Session) error {
		if err := s.startElicitation(ctx, sess); err != nil {
			return err
		}
		resp = newSessionResponse(sess, true)
		return nil
	})
	if err != nil {
		// A failed synthesis leaves nothing worth resuming; the client resubmits.
		s.deps.Sessions.Delete(sess.ID)
		s.writeError(w, statusFor(err), fmt.Errorf("start elicitation: %w", err))
		return
	}

	s.writeJSON(w, http.StatusCreated, resp)
}

// handleResubmitSession replaces a session's inputs after upstream edits.
// The corpus is rebuilt and elicitation restarts from the first question.
func (s *Server) handleResubmitSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ingestion == nil || s.deps.Synthesizer == nil {
		s.writeError(w, http.StatusServiceUnavailable, errors.New("pipeline is not configured"))
		return
	}

	var req submissionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	ctx := r.Context()
	id := chi.URLParam(r, "id")
	// Existence is checked first so a bad id does not trigger any fetches.
	if err := s.deps.Sessions.With(ctx, id, func(context.Context, *elicitation.Session) error { return nil }); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}

	extracted := s.deps.Ingestion.ExtractSubmission(ctx, req.submission())
	inputs := corpus.NewInputs(req.Company, req.Grant, req.Budget, extracted)

	var resp sessionResponse
	err := s.deps.Sessions.With(ctx, id, func(ctx context.Context, sess *elicitation.Session) error {
		sess.Resubmit(inputs)
		if err := s.startElicitation(ctx, sess); err != nil {
			return err
		}
		resp = newSessionResponse(sess, true)
		return nil
	})
	if err != nil {
		s.writeError(w, statusFor(err), fmt.Errorf("restart elicitation: %w", err))
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// startElicitation synthesizes questions and opens the first one. A blocked
// session is not an error here; its snapshot carries the reason.
func (s *Server) startElicitation(ctx context.Context, sess *elicitation.Session) error {
	if err := sess.Loop.Start(ctx, s.deps.Synthesizer); err != nil && !errors.Is(err, elicitation.ErrBlocked) {
		return err
	}
	if sess.Loop.State() == elicitation.StatePresenting {
		if _, err := sess.Loop.Present(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	var resp sessionResponse
	err := s.deps.Sessions.With(r.Context(), chi.URLParam(r, "id"), func(_ context.Context, sess *elicitation.Session) error {
		resp = newSessionResponse(sess, r.URL.Query().Get("include") == "corpus")
		return nil
	})
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.deps.Sessions.Delete(id) {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("%w: %s", elicitation.ErrSessionNotFound, id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	var resp sessionResponse
	err := s.deps.Sessions.With(r.Context(), chi.URLParam(r, "id"), func(_ context.Context, sess *elicitation.Session) error {
		if err := sess.Loop.Answer(req.Answer); err != nil {
			return err
		}
		if sess.Loop.State() == elicitation.StatePresenting {
			if _, err := sess.Loop.Present(); err != nil {
				return err
			}
		}
		resp = newSessionResponse(sess, false)
		return nil
	})
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDraft(w http.ResponseWriter, r *http.Request) {
	if s.deps.Drafter == nil {
		s.writeError(w, http.StatusServiceUnavailable, errors.New("drafter is not configured"))
		return
	}

	var resp draftResponse
	err := s.deps.Sessions.With(r.Context(), chi.URLParam(r, "id"), func(ctx context.Context, sess *elicitation.Session) error {
		if state := sess.Loop.State(); state != elicitation.StateComplete {
			return fmt.Errorf("%w: draft requires a complete session, state is %s", elicitation.ErrInvalidTransition, state)
		}

		c := sess.Loop.Corpus()
		draft, err := s.deps.Drafter.Draft(ctx, c, sess.Loop.Transcript())
		if err != nil {
			return err
		}
		resp.Title = draft.Title
		resp.Body = draft.Body

		if s.deps.Publisher == nil {
			return nil
		}
		app, err := s.deps.Publisher.Publish(ctx, drafting.PublishRequest{
			UserID:    sess.UserID,
			SessionID: sess.ID,
			GrantName: sess.Inputs.Grant.ProgramName,
			Draft:     draft,
			Sources:   sessionSources(sess.Inputs),
		})
		if err != nil {
			// The draft is still returned; storing it is best effort.
			s.logger.Warn("publish draft", zap.String("session_id", sess.ID), zap.Error(err))
			resp.PublishError = err.Error()
			return nil
		}
		resp.Application = &app
		return nil
	})
	if err != nil {
		s.writeError(w, statusFor(err), fmt.Errorf("draft application: %w", err))
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ingestion == nil || s.deps.Budget == nil {
		s.writeError(w, http.StatusServiceUnavailable, errors.New("budget analysis is not configured"))
		return
	}

	var req budgetRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	ctx := r.Context()
	extracted := s.deps.Ingestion.ExtractSubmission(ctx, ingestion.Submission{
		Guidelines:      req.Guidelines.pick("guidelines"),
		ApplicationForm: req.ApplicationForm.pick("application-form"),
	})

	summary, err := s.deps.Budget.Analyze(ctx, extracted.Guidelines, extracted.ApplicationForm)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleListApplications(w http.ResponseWriter, r *http.Request) {
	if s.deps.Applications == nil {
		s.writeError(w, http.StatusServiceUnavailable, errors.New("application history is not configured"))
		return
	}
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("user_id is required"))
		return
	}

	apps, err := s.deps.Applications.ListByUser(r.Context(), userID, queryLimit(r))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("list applications: %w", err))
		return
	}
	s.writeJSON(w, http.StatusOK, applicationsResponse{Applications: apps})
}

func (s *Server) handleSimilarApplications(w http.ResponseWriter, r *http.Request) {
	if s.deps.Applications == nil || s.deps.Embedder == nil {
		s.writeError(w, http.StatusServiceUnavailable, errors.New("similarity search requires an embedder and application history"))
		return
	}
	q := r.URL.Query()
	userID := strings.TrimSpace(q.Get("user_id"))
	text := strings.TrimSpace(q.Get("q"))
	if userID == "" || text == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("user_id and q are required"))
		return
	}

	ctx := r.Context()
	vectors, err := s.deps.Embedder.Embed(ctx, []string{text})
	if err != nil || len(vectors) == 0 {
		s.writeError(w, http.StatusBadGateway, fmt.Errorf("embed query: %w", errors.Join(llm.ErrProvider, err)))
		return
	}

	results, err := s.deps.Applications.Similar(ctx, userID, vectors[0], queryLimit(r))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("similar applications: %w", err))
		return
	}
	s.writeJSON(w, http.StatusOK, similarResponse{Results: results})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	var req clearRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if !req.Confirm {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("confirm must be true to clear data"))
		return
	}

	ctx := r.Context()
	resp := clearResponse{Sessions: s.deps.Sessions.Clear()}

	if s.deps.Applications != nil {
		n, err := s.deps.Applications.Clear(ctx)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, fmt.Errorf("clear applications: %w", err))
			return
		}
		resp.Applications = n
	}
	if s.deps.Documents != nil {
		n, err := s.deps.Documents.Clear()
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, fmt.Errorf("clear documents: %w", err))
			return
		}
		resp.Documents = n
	}
	if s.deps.Graph != nil {
		if err := knowledge.Purge(ctx, s.deps.Graph); err != nil {
			s.writeError(w, http.StatusInternalServerError, fmt.Errorf("clear neo4j: %w", err))
			return
		}
	}

	s.logger.Info("data cleared",
		zap.Int("sessions", resp.Sessions),
		zap.Int64("applications", resp.Applications),
		zap.Int("documents", resp.Documents),
	)
	s.writeJSON(w, http.StatusOK, resp)
}

// statusFor maps pipeline errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, elicitation.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, elicitation.ErrEmptyAnswer):
		return http.StatusBadRequest
	case errors.Is(err, elicitation.ErrValidation), errors.Is(err, drafting.ErrNoBudgetSources):
		return http.StatusUnprocessableEntity
	case errors.Is(err, elicitation.ErrBlocked), errors.Is(err, elicitation.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, llm.ErrProvider), errors.Is(err, drafting.ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func queryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return defaultHistoryLimit
	}
	return limit
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("api error", zap.Int("status", status), zap.Error(err))
	} else {
		s.logger.Warn("api error", zap.Int("status", status), zap.Error(err))
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}

	if dec.More() {
		return fmt.Errorf("request body must contain a single JSON object")
	}

	return nil
}
