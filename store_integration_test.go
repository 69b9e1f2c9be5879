//go:build integration

package main

import (
	"context"
	"database/sql"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"
)

// setupPostgresStore starts a throwaway Postgres and applies the schema.
// Run with: go test -tags integration ./...
func setupPostgresStore(t *testing.T) *store {
	t.Helper()
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("creatormatch"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	st, err := openStore(driverPostgres, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.migrate(ctx))
	require.NoError(t, st.migrate(ctx))
	return st
}

func TestPostgres_StoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := setupPostgresStore(t)

	a := baseCreator("auth-a", "A")
	b := baseCreator("auth-b", "B")
	require.NoError(t, st.insertCreator(ctx, a))
	require.NoError(t, st.insertCreator(ctx, b))

	got, err := st.creatorByAuthID(ctx, "auth-a")
	require.NoError(t, err)
	assert.Equal(t, a.ContentNiches, got.ContentNiches)
	assert.True(t, got.OnboardingCompleted)

	m := &Match{CreatorID1: a.ID, CreatorID2: b.ID, Status: MatchPending, SuggestedCollabs: []string{"Tutorial swap"}}
	require.NoError(t, st.insertMatch(ctx, st.db, m))

	err = withTx(ctx, st.db, func(tx *sql.Tx) error {
		locked, err := st.loadPairForUpdate(ctx, tx, b.ID, a.ID)
		if err != nil {
			return err
		}
		require.NotNil(t, locked)
		return st.setMatchStatus(ctx, tx, locked, MatchAccepted)
	})
	require.NoError(t, err)

	for _, text := range []string{"one", "two"} {
		require.NoError(t, st.insertMessage(ctx, &Message{MatchID: m.ID, SenderID: a.ID, Content: text}))
		time.Sleep(time.Millisecond)
	}
	msgs, err := st.messagesForMatch(ctx, m.ID, time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "one", msgs[0].Content)

	candidates, err := st.candidateCreators(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

// Repeated requests racing each other must leave exactly one match row.
func TestPostgres_ConcurrentRequestsSameDirection(t *testing.T) {
	st := setupPostgresStore(t)
	cfg, err := loadConfig(newViper())
	require.NoError(t, err)
	cfg.Auth.JWTSecret = testSecret
	cat, err := loadCatalog()
	require.NoError(t, err)
	srv := newServer(cfg, st, &fakeAuth{}, cat, zap.NewNop())
	env := &testEnv{st: st, srv: srv, auth: &fakeAuth{}, handler: srv.routes(nil)}

	env.addCreator(t, baseCreator("auth-a", "A"))
	b := env.addCreator(t, baseCreator("auth-b", "B"))

	var wg sync.WaitGroup
	codes := make([]int, 8)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rr := env.do(t, http.MethodPost, "/matches", "auth-a", map[string]string{"creatorId": b.ID})
			codes[i] = rr.Code
		}(i)
	}
	wg.Wait()

	created := 0
	for _, c := range codes {
		if c == http.StatusCreated {
			created++
		}
	}
	assert.LessOrEqual(t, created, 1)

	all, err := st.matchesForCreator(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
