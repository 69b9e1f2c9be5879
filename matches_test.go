package main

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type matchPair struct {
	env   *testEnv
	alice *Creator
	bob   *Creator
}

func newMatchPair(t *testing.T) *matchPair {
	t.Helper()
	env := newTestEnv(t)
	return &matchPair{
		env:   env,
		alice: env.addCreator(t, baseCreator("auth-alice", "Alice")),
		bob:   env.addCreator(t, baseCreator("auth-bob", "Bob")),
	}
}

func (p *matchPair) request(t *testing.T, from string, to *Creator) (int, Match) {
	t.Helper()
	rr := p.env.do(t, http.MethodPost, "/matches", from, map[string]string{"creatorId": to.ID})
	if rr.Code >= 300 {
		return rr.Code, Match{}
	}
	return rr.Code, decodeBody[Match](t, rr)
}

func TestRequestMatch_CreatesPending(t *testing.T) {
	p := newMatchPair(t)

	code, m := p.request(t, "auth-alice", p.bob)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, p.alice.ID, m.CreatorID1)
	assert.Equal(t, p.bob.ID, m.CreatorID2)
	assert.Equal(t, MatchPending, m.Status)
	assert.Equal(t, []string{"Co-hosted live stream", "Tutorial swap"}, m.SuggestedCollabs)

	stored, err := p.env.st.matchByID(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, MatchPending, stored.Status)
}

func TestRequestMatch_RepeatIsIdempotent(t *testing.T) {
	p := newMatchPair(t)

	_, first := p.request(t, "auth-alice", p.bob)
	code, again := p.request(t, "auth-alice", p.bob)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, MatchPending, again.Status)

	all, err := p.env.st.matchesForCreator(context.Background(), p.alice.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRequestMatch_ReverseRequestAccepts(t *testing.T) {
	p := newMatchPair(t)

	_, first := p.request(t, "auth-alice", p.bob)
	code, m := p.request(t, "auth-bob", p.alice)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, first.ID, m.ID)
	assert.Equal(t, MatchAccepted, m.Status)
	assert.Equal(t, p.alice.ID, m.CreatorID1, "the original requester stays creator 1")

	// asking again after acceptance changes nothing
	code, m = p.request(t, "auth-alice", p.bob)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, MatchAccepted, m.Status)
}

func TestRequestMatch_AfterRejection(t *testing.T) {
	p := newMatchPair(t)

	_, m := p.request(t, "auth-alice", p.bob)
	rr := p.env.do(t, http.MethodPost, "/matches/"+m.ID+"/reject", "auth-bob", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	for _, from := range []string{"auth-alice", "auth-bob"} {
		target := p.bob
		if from == "auth-bob" {
			target = p.alice
		}
		code, _ := p.request(t, from, target)
		assert.Equal(t, http.StatusConflict, code, from)
	}
}

func TestRequestMatch_ConcurrentSameDirection(t *testing.T) {
	p := newMatchPair(t)

	var wg sync.WaitGroup
	codes := make([]int, 8)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rr := p.env.do(t, http.MethodPost, "/matches", "auth-alice", map[string]string{"creatorId": p.bob.ID})
			codes[i] = rr.Code
		}(i)
	}
	wg.Wait()

	created := 0
	for _, c := range codes {
		assert.Contains(t, []int{http.StatusCreated, http.StatusOK}, c)
		if c == http.StatusCreated {
			created++
		}
	}
	assert.Equal(t, 1, created)

	all, err := p.env.st.matchesForCreator(context.Background(), p.bob.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRequestMatch_BadTargets(t *testing.T) {
	p := newMatchPair(t)

	rr := p.env.do(t, http.MethodPost, "/matches", "auth-alice", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "missing_fields", errorCode(t, rr))

	rr = p.env.do(t, http.MethodPost, "/matches", "auth-alice", map[string]string{"creatorId": p.alice.ID})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_target", errorCode(t, rr))

	rr = p.env.do(t, http.MethodPost, "/matches", "auth-alice", map[string]string{"creatorId": "missing"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = p.env.do(t, http.MethodPost, "/matches", "auth-alice", "nope")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_json", errorCode(t, rr))

	rr = p.env.do(t, http.MethodDelete, "/matches", "auth-alice", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestTransitionMatch(t *testing.T) {
	t.Run("addressee accepts", func(t *testing.T) {
		p := newMatchPair(t)
		_, m := p.request(t, "auth-alice", p.bob)

		rr := p.env.do(t, http.MethodPost, "/matches/"+m.ID+"/accept", "auth-bob", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, MatchAccepted, decodeBody[Match](t, rr).Status)

		// repeating is a no-op
		rr = p.env.do(t, http.MethodPost, "/matches/"+m.ID+"/accept", "auth-bob", nil)
		assert.Equal(t, http.StatusOK, rr.Code)

		// and an accepted match cannot be rejected
		rr = p.env.do(t, http.MethodPost, "/matches/"+m.ID+"/reject", "auth-bob", nil)
		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, "invalid_state", errorCode(t, rr))
	})

	t.Run("requester cannot decide", func(t *testing.T) {
		p := newMatchPair(t)
		_, m := p.request(t, "auth-alice", p.bob)

		rr := p.env.do(t, http.MethodPost, "/matches/"+m.ID+"/accept", "auth-alice", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)

		stored, err := p.env.st.matchByID(context.Background(), m.ID)
		require.NoError(t, err)
		assert.Equal(t, MatchPending, stored.Status)
	})

	t.Run("outsider sees nothing", func(t *testing.T) {
		p := newMatchPair(t)
		p.env.addCreator(t, baseCreator("auth-eve", "Eve"))
		_, m := p.request(t, "auth-alice", p.bob)

		rr := p.env.do(t, http.MethodPost, "/matches/"+m.ID+"/reject", "auth-eve", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("rejected cannot be accepted", func(t *testing.T) {
		p := newMatchPair(t)
		_, m := p.request(t, "auth-alice", p.bob)

		rr := p.env.do(t, http.MethodPost, "/matches/"+m.ID+"/reject", "auth-bob", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, MatchRejected, decodeBody[Match](t, rr).Status)

		rr = p.env.do(t, http.MethodPost, "/matches/"+m.ID+"/accept", "auth-bob", nil)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("unknown match and action", func(t *testing.T) {
		p := newMatchPair(t)
		rr := p.env.do(t, http.MethodPost, "/matches/missing/accept", "auth-bob", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)

		_, m := p.request(t, "auth-alice", p.bob)
		rr = p.env.do(t, http.MethodPost, "/matches/"+m.ID+"/archive", "auth-bob", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)

		rr = p.env.do(t, http.MethodGet, "/matches/"+m.ID+"/accept", "auth-bob", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	})
}

type matchesBody struct {
	Matches []struct {
		ID        string         `json:"id"`
		Status    MatchStatus    `json:"status"`
		Direction string         `json:"direction"`
		Peer      map[string]any `json:"peer"`
	} `json:"matches"`
}

func TestListMatches(t *testing.T) {
	p := newMatchPair(t)
	carol := p.env.addCreator(t, baseCreator("auth-carol", "Carol"))

	_, toBob := p.request(t, "auth-alice", p.bob)
	_, fromCarol := p.request(t, "auth-carol", p.alice)
	rr := p.env.do(t, http.MethodPost, "/matches/"+fromCarol.ID+"/accept", "auth-alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = p.env.do(t, http.MethodGet, "/matches", "auth-alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	body := decodeBody[matchesBody](t, rr)
	require.Len(t, body.Matches, 2)

	// most recently updated first
	assert.Equal(t, fromCarol.ID, body.Matches[0].ID)
	assert.Equal(t, MatchAccepted, body.Matches[0].Status)
	assert.Equal(t, "incoming", body.Matches[0].Direction)
	assert.Equal(t, carol.ID, body.Matches[0].Peer["id"])
	assert.NotContains(t, body.Matches[0].Peer, "preferences")

	assert.Equal(t, toBob.ID, body.Matches[1].ID)
	assert.Equal(t, "outgoing", body.Matches[1].Direction)
	assert.Equal(t, "Bob", body.Matches[1].Peer["name"])
}

func TestListMatches_Empty(t *testing.T) {
	p := newMatchPair(t)
	rr := p.env.do(t, http.MethodGet, "/matches", "auth-alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"matches":[]}`, rr.Body.String())
}
