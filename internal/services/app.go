package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"paperpayout-client/internal/logger"
	"paperpayout-client/internal/models"
)

// Backend is everything the client consumes from the game backend.
type Backend interface {
	AuthBackend
	WalletBackend
	LobbyBackend
	BoardBackend
	FriendsBackend
}

// App is the state container for one running client. Each controller owns
// its slice; the session epoch fences everything derived from identity.
type App struct {
	Sessions *SessionManager
	Wallet   *WalletController
	Lobby    *LobbyCoordinator
	Board    *LeaderboardPoller
	Friends  *FriendsDirectory

	feed   *ChangeFeed
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewApp(backend Backend, registry InflightRegistry, log *zap.Logger) *App {
	log = logger.OrNop(log)
	if registry == nil {
		registry = NewMemoryRegistry()
	}
	feed := &ChangeFeed{}
	ctx, cancel := context.WithCancel(context.Background())

	sessions := NewSessionManager(backend, registry, feed, log)
	a := &App{
		Sessions: sessions,
		Wallet:   NewWalletController(backend, sessions, registry, feed, log),
		Lobby:    NewLobbyCoordinator(backend, sessions, registry, feed, log),
		Board:    NewLeaderboardPoller(backend, feed, log),
		Friends:  NewFriendsDirectory(backend, sessions, feed, log),
		feed:     feed,
		log:      log.Named("app"),
		ctx:      ctx,
		cancel:   cancel,
	}

	sessions.OnAuthenticated(a.afterLogin)
	sessions.OnAnonymous(func() {
		a.Wallet.Clear()
		a.Lobby.Clear()
		a.Friends.Clear()
	})

	return a
}

// afterLogin runs the initial wallet and friends fetch in the background so
// login returns as soon as the session is set.
func (a *App) afterLogin(sess models.Session, _ uint64) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		var g errgroup.Group
		g.Go(func() error { return a.Wallet.Refresh(a.ctx) })
		g.Go(func() error { return a.Friends.Refresh(a.ctx) })
		if err := g.Wait(); err != nil {
			a.log.Debug("initial session fetch incomplete", zap.String("user_id", sess.UserID), zap.Error(err))
		}
	}()
}

// Start performs the initial stats and leaderboard load.
func (a *App) Start(ctx context.Context) {
	if err := a.Board.Tick(ctx); err != nil {
		a.log.Debug("initial board load incomplete", zap.Error(err))
	}
}

// Run polls stats and the leaderboard until Close or ctx ends.
func (a *App) Run(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-a.ctx.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	a.Board.Run(ctx, interval)
}

func (a *App) Feed() *ChangeFeed {
	return a.feed
}

// Close stops background work and waits for it.
func (a *App) Close() {
	a.cancel()
	a.wg.Wait()
}
