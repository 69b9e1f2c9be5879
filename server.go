package main

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/creatormatch/backend/match"
)

// server carries the dependencies every handler needs.
type server struct {
	store    *store
	log      *zap.Logger
	tokens   *tokenVerifier
	signup   authClient
	scorer   *match.Scorer
	catalog  *catalog
	recLimit int
}

func newServer(cfg *Config, st *store, signup authClient, cat *catalog, log *zap.Logger) *server {
	return &server{
		store:    st,
		log:      log,
		tokens:   &tokenVerifier{secret: []byte(cfg.Auth.JWTSecret)},
		signup:   signup,
		scorer:   match.NewScorer(cfg.Scoring.Weights()),
		catalog:  cat,
		recLimit: cfg.Recommendations.Limit,
	}
}

// routes builds the HTTP handler: CORS -> DataLoader -> mux.
func (s *server) routes(origins []string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Account & profile
	mux.Handle("/auth/signup", s.signupHandler())
	mux.Handle("/onboarding/questions", s.onboardingQuestionsHandler())
	mux.Handle("/onboarding", s.onboardingHandler())
	mux.Handle("/me", s.meHandler())
	mux.Handle("/creators/", s.creatorHandler()) // GET /creators/{id}

	// Discovery & matching
	mux.Handle("/recommendations", s.recommendationsHandler())
	mux.Handle("/matches", s.matchesHandler())      // GET, POST
	mux.Handle("/matches/", s.matchActionsRouter()) // /matches/{id}/(accept|reject|messages)

	return withCORS(origins)(DataLoaderMiddleware(s.store)(mux))
}
