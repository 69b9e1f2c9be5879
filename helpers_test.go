package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/creatormatch/backend/match"
)

const testSecret = "test-secret-key-for-testing"

func setupTestStore(t *testing.T) *store {
	t.Helper()
	st, err := openStore(driverSQLite, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.migrate(context.Background()))
	return st
}

// fakeAuth stands in for the managed auth service.
type fakeAuth struct {
	mu     sync.Mutex
	calls  []string
	err    error
	nextID string
}

func (f *fakeAuth) SignUp(_ context.Context, email, _ string, _ map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, email)
	if f.err != nil {
		return "", f.err
	}
	if f.nextID != "" {
		return f.nextID, nil
	}
	return "auth-" + email, nil
}

type testEnv struct {
	st      *store
	srv     *server
	auth    *fakeAuth
	handler http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg, err := loadConfig(newViper())
	require.NoError(t, err)
	cfg.Auth.JWTSecret = testSecret
	cfg.Recommendations.Limit = 10

	cat, err := loadCatalog()
	require.NoError(t, err)

	st := setupTestStore(t)
	auth := &fakeAuth{}
	srv := newServer(cfg, st, auth, cat, zap.NewNop())
	return &testEnv{st: st, srv: srv, auth: auth, handler: srv.routes(cfg.CORS.AllowedOrigins)}
}

func tokenFor(t *testing.T, authID string) string {
	t.Helper()
	token, err := signToken([]byte(testSecret), authID, time.Hour)
	require.NoError(t, err)
	return token
}

// baseCreator is an onboarded creator with the profile of the scoring example.
func baseCreator(authID, name string) *Creator {
	return &Creator{
		AuthID:              authID,
		Name:                name,
		Age:                 25,
		ContentNiches:       []match.Niche{match.NicheTech, match.NicheEducation},
		SkillLevel:          match.Intermediate,
		Platforms:           []match.Platform{match.PlatformYouTube, match.PlatformTikTok},
		Goals:               []match.Goal{match.GoalCollaboration},
		Timezone:            -8,
		Languages:           []string{"English"},
		Vibes:               []match.Vibe{match.VibeEducational},
		OnboardingCompleted: true,
	}
}

func (e *testEnv) addCreator(t *testing.T, c *Creator) *Creator {
	t.Helper()
	require.NoError(t, e.st.insertCreator(context.Background(), c))
	return c
}

func (e *testEnv) do(t *testing.T, method, path, authID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authID != "" {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, authID))
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody[map[string]any](t, rr)["error"].(string)
}
