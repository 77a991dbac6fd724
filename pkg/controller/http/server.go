package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/secmon-lab/caseline/pkg/utils/logging"
	"github.com/secmon-lab/caseline/pkg/utils/safe"
)

type Server struct {
	router             *chi.Mux
	interactionHandler *SlackInteractionHandler
	slackSigningSecret string
	cases              CaseService
	apiToken           string
}

type Options func(*Server)

// WithSlackInteraction enables the Slack interaction endpoint
func WithSlackInteraction(handler *SlackInteractionHandler, signingSecret string) Options {
	return func(s *Server) {
		s.interactionHandler = handler
		s.slackSigningSecret = signingSecret
	}
}

// WithCaseAPI enables the JSON case API, protected by apiToken when set
func WithCaseAPI(cases CaseService, apiToken string) Options {
	return func(s *Server) {
		s.cases = cases
		s.apiToken = apiToken
	}
}

func New(opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{router: r}
	for _, opt := range opts {
		opt(s)
	}

	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		safe.Write(r.Context(), w, []byte("ok"))
	})

	// Signature verification replaces authentication for Slack
	if s.interactionHandler != nil {
		r.Route("/hooks/slack", func(r chi.Router) {
			r.Use(SlackSignatureMiddleware(s.slackSigningSecret))
			r.Post("/interaction", s.interactionHandler.ServeHTTP)
		})
	}

	if s.cases != nil {
		r.Route("/api/tenants/{tenant}/cases", func(r chi.Router) {
			r.Use(bearerAuth(s.apiToken))
			caseAPIRoutes(s.cases)(r)
		})
	}

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		logger := logging.From(r.Context()).With("request_id", middleware.GetReqID(r.Context()))
		r = r.WithContext(logging.With(r.Context(), logger))

		defer func() {
			logger.Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
