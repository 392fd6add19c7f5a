package services_test

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"paperpayout-client/internal/models"
	"paperpayout-client/internal/services"
)

func TestAnonymousJoinOpensAuthInstead(t *testing.T) {
	f := newFakeBackend(t)
	app := newTestApp(t, f)

	require.NoError(t, app.Lobby.SelectWager(5))
	m, err := app.Lobby.JoinGame(context.Background())

	assert.Nil(t, m)
	assert.ErrorIs(t, err, services.ErrAuthRequired)
	assert.True(t, app.Sessions.Prompt().Open)
	assert.Equal(t, models.AuthModeLogin, app.Sessions.Prompt().Mode)
	assert.Equal(t, 0, f.count("join"))
}

func TestJoinWithoutWagerIsNoop(t *testing.T) {
	f := newFakeBackend(t)
	app := newTestApp(t, f)
	loginAndSettle(t, app, f)

	m, err := app.Lobby.JoinGame(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, m)
	assert.Equal(t, 0, f.count("join"))
}

func TestSelectWager(t *testing.T) {
	f := newFakeBackend(t)
	app := newTestApp(t, f)

	require.NoError(t, app.Lobby.SelectWager(20))
	require.NoError(t, app.Lobby.SelectWager(20))
	assert.Equal(t, models.WagerTwenty, app.Lobby.Wager())

	require.NoError(t, app.Lobby.SelectWager(1))
	assert.Equal(t, models.WagerOne, app.Lobby.Wager())

	err := app.Lobby.SelectWager(7)
	assert.Equal(t, services.KindValidation, services.KindOf(err))
	assert.Equal(t, models.WagerOne, app.Lobby.Wager())
}

func TestJoinGameJoined(t *testing.T) {
	f := newFakeBackend(t)
	app := newTestApp(t, f)
	loginAndSettle(t, app, f)

	require.NoError(t, app.Lobby.SelectWager(5))
	m, err := app.Lobby.JoinGame(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.LobbyJoined, m.Status)
	assert.Equal(t, []string{"u1"}, m.Players)
	assert.Equal(t, 2, m.MaxPlayers)
	assert.Equal(t, models.WagerFive, m.WagerUSD)
	assert.Equal(t, "Joined lobby (1/2)", m.Summary())

	f.set(func(f *fakeBackend) {
		require.Len(t, f.joinReqs, 1)
		assert.Equal(t, models.JoinRequest{UserID: "u1", WagerUSD: models.WagerFive}, f.joinReqs[0])
	})
}

func TestJoinGameSingleFlight(t *testing.T) {
	f := newFakeBackend(t)
	app := newTestApp(t, f)
	loginAndSettle(t, app, f)
	require.NoError(t, app.Lobby.SelectWager(5))

	g := f.hold("join")
	type result struct {
		m   *models.LobbyMembership
		err error
	}
	first := make(chan result, 1)
	go func() {
		m, err := app.Lobby.JoinGame(context.Background())
		first <- result{m, err}
	}()
	g.WaitEntered(t)
	assert.True(t, app.Lobby.Joining())
	assert.Nil(t, app.Lobby.Membership(), "no optimistic membership")

	m, err := app.Lobby.JoinGame(context.Background())
	assert.Nil(t, m)
	assert.Equal(t, services.KindBusy, services.KindOf(err))

	g.Open()
	r := <-first
	require.NoError(t, r.err)
	assert.Equal(t, models.LobbyJoined, r.m.Status)
	assert.Equal(t, 1, f.count("join"))
	assert.False(t, app.Lobby.Joining())
}

func TestJoinGameStartedIsTerminal(t *testing.T) {
	f := newFakeBackend(t)
	f.set(func(f *fakeBackend) {
		f.joinResp = models.JoinResponse{Status: models.LobbyStarted, Players: []string{"u1", "u2"}, MaxPlayers: 2}
	})
	app := newTestApp(t, f)
	loginAndSettle(t, app, f)
	require.NoError(t, app.Lobby.SelectWager(20))

	m, err := app.Lobby.JoinGame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.LobbyStarted, m.Status)
	assert.True(t, app.Lobby.Membership().Terminal())

	_, err = app.Lobby.JoinGame(context.Background())
	assert.Equal(t, services.KindValidation, services.KindOf(err))
	assert.Equal(t, 1, f.count("join"))
	assert.Equal(t, models.LobbyStarted, app.Lobby.Membership().Status)
}

func TestJoinGameRejectedLeavesMembership(t *testing.T) {
	f := newFakeBackend(t)
	app := newTestApp(t, f)
	loginAndSettle(t, app, f)
	require.NoError(t, app.Lobby.SelectWager(5))

	f.fail("join", http.StatusBadRequest, `{"detail":"Insufficient balance"}`)
	m, err := app.Lobby.JoinGame(context.Background())
	assert.Nil(t, m)
	assert.Equal(t, "Insufficient balance", services.UserMessage(err, "Unable to join lobby"))
	assert.Nil(t, app.Lobby.Membership())

	f.fail("join", http.StatusOK, `{"status":"queued"}`)
	_, err = app.Lobby.JoinGame(context.Background())
	assert.Equal(t, services.KindDecode, services.KindOf(err))
	assert.Equal(t, "Unable to join lobby", services.UserMessage(err, "Unable to join lobby"))
	assert.Nil(t, app.Lobby.Membership())
}

func TestJoinConfirmedAfterLogoutIsNotApplied(t *testing.T) {
	f := newFakeBackend(t)
	app := newTestApp(t, f)
	loginAndSettle(t, app, f)
	require.NoError(t, app.Lobby.SelectWager(5))

	g := f.hold("join")
	done := make(chan error, 1)
	go func() {
		_, err := app.Lobby.JoinGame(context.Background())
		done <- err
	}()
	g.WaitEntered(t)

	app.Sessions.Logout()
	g.Open()

	assert.ErrorIs(t, <-done, services.ErrNotAuthenticated)
	assert.Nil(t, app.Lobby.Membership())
}

// slowJoinRegistry parks the second join acquire until proceed is closed.
type slowJoinRegistry struct {
	*services.MemoryRegistry
	mu      sync.Mutex
	joins   int
	waiting chan struct{}
	proceed chan struct{}
}

func (r *slowJoinRegistry) Acquire(ctx context.Context, op, sessionID string) (func(), error) {
	if op == services.OpJoin {
		r.mu.Lock()
		r.joins++
		n := r.joins
		r.mu.Unlock()
		if n == 2 {
			close(r.waiting)
			<-r.proceed
		}
	}
	return r.MemoryRegistry.Acquire(ctx, op, sessionID)
}

func TestJoinAfterStartWhileAcquiringIsRejected(t *testing.T) {
	f := newFakeBackend(t)
	f.set(func(f *fakeBackend) {
		f.joinResp = models.JoinResponse{Status: models.LobbyStarted, Players: []string{"u1", "u2"}, MaxPlayers: 2}
	})
	registry := &slowJoinRegistry{
		MemoryRegistry: services.NewMemoryRegistry(),
		waiting:        make(chan struct{}),
		proceed:        make(chan struct{}),
	}
	app := services.NewApp(f.client(), registry, zaptest.NewLogger(t))
	t.Cleanup(app.Close)
	loginAndSettle(t, app, f)
	require.NoError(t, app.Lobby.SelectWager(5))

	g := f.hold("join")
	first := make(chan error, 1)
	go func() {
		_, err := app.Lobby.JoinGame(context.Background())
		first <- err
	}()
	g.WaitEntered(t)

	second := make(chan error, 1)
	go func() {
		_, err := app.Lobby.JoinGame(context.Background())
		second <- err
	}()
	<-registry.waiting

	g.Open()
	require.NoError(t, <-first)
	require.True(t, app.Lobby.Membership().Terminal())

	close(registry.proceed)
	err := <-second
	assert.Equal(t, services.KindValidation, services.KindOf(err))
	assert.Equal(t, "match already started", services.UserMessage(err, ""))
	assert.Equal(t, 1, f.count("join"))
}
