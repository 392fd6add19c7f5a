package services

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"paperpayout-client/internal/logger"
	"paperpayout-client/internal/models"
)

type LobbyBackend interface {
	JoinLobby(ctx context.Context, req *models.JoinRequest) (*models.JoinResponse, error)
}

// LobbyCoordinator owns the wager selection and the join lifecycle. Joining
// stakes money, so membership only changes on a confirmed response and at
// most one join per session is ever outstanding.
type LobbyCoordinator struct {
	backend  LobbyBackend
	sessions *SessionManager
	registry InflightRegistry
	feed     Broadcaster
	log      *zap.Logger

	mu         sync.RWMutex
	wager      models.Wager
	joining    bool
	membership *models.LobbyMembership
}

func NewLobbyCoordinator(backend LobbyBackend, sessions *SessionManager, registry InflightRegistry, feed Broadcaster, log *zap.Logger) *LobbyCoordinator {
	return &LobbyCoordinator{
		backend:  backend,
		sessions: sessions,
		registry: registry,
		feed:     feed,
		log:      logger.OrNop(log).Named("lobby"),
	}
}

func (c *LobbyCoordinator) SelectWager(amount int) error {
	w, err := models.ParseWager(amount)
	if err != nil {
		return validationError("lobby.wager", err)
	}

	c.mu.Lock()
	changed := c.wager != w
	c.wager = w
	c.mu.Unlock()

	if changed {
		c.notify()
	}
	return nil
}

// JoinGame stakes the selected wager. An anonymous caller gets the auth
// prompt instead and ErrAuthRequired. Without a wager it does nothing and
// returns nil, nil.
func (c *LobbyCoordinator) JoinGame(ctx context.Context) (*models.LobbyMembership, error) {
	sess, epoch, ok := c.sessions.Current()
	if !ok {
		c.sessions.RequestAuth(models.AuthModeLogin)
		return nil, &Error{Kind: KindValidation, Op: OpJoin, Message: "please log in to join a game", Err: ErrAuthRequired}
	}

	c.mu.RLock()
	wager := c.wager
	terminal := c.membership.Terminal()
	c.mu.RUnlock()

	if wager == 0 {
		c.log.Debug("join ignored, no wager selected")
		return nil, nil
	}
	if terminal {
		return nil, validationError(OpJoin, errors.New("match already started"))
	}

	release, err := c.registry.Acquire(ctx, OpJoin, sess.UserID)
	if errors.Is(err, ErrBusy) {
		return nil, busyError(OpJoin)
	}
	if err != nil {
		return nil, err
	}
	defer release()

	// A join that finished while we waited on the guard may have started the match.
	c.mu.RLock()
	terminal = c.membership.Terminal()
	c.mu.RUnlock()
	if terminal {
		return nil, validationError(OpJoin, errors.New("match already started"))
	}

	c.setJoining(true)
	defer c.setJoining(false)

	resp, err := c.backend.JoinLobby(ctx, &models.JoinRequest{UserID: sess.UserID, WagerUSD: wager})
	if err != nil {
		c.log.Warn("join rejected", zap.String("user_id", sess.UserID), zap.Int("wager_usd", int(wager)), zap.Error(err))
		return nil, err
	}

	m := &models.LobbyMembership{
		Status:     resp.Status,
		Players:    append([]string(nil), resp.Players...),
		MaxPlayers: resp.MaxPlayers,
		WagerUSD:   wager,
	}

	c.mu.Lock()
	if !c.sessions.IsCurrent(epoch) {
		c.mu.Unlock()
		c.log.Warn("join confirmed after session ended, not applied", zap.String("user_id", sess.UserID))
		return nil, &Error{Kind: KindValidation, Op: OpJoin, Message: "session ended before the join completed", Err: ErrNotAuthenticated}
	}
	c.membership = m
	c.mu.Unlock()

	c.log.Info("joined lobby", zap.String("user_id", sess.UserID), zap.String("status", string(m.Status)),
		zap.Int("players", len(m.Players)), zap.Int("max_players", m.MaxPlayers))
	c.notify()

	out := *m
	return &out, nil
}

func (c *LobbyCoordinator) Wager() models.Wager {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.wager
}

func (c *LobbyCoordinator) Joining() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.joining
}

func (c *LobbyCoordinator) Membership() *models.LobbyMembership {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.membership == nil {
		return nil
	}
	m := *c.membership
	m.Players = append([]string(nil), c.membership.Players...)
	return &m
}

// Clear drops the membership; it is called when the session ends. The wager
// selection survives since anonymous users may pick one.
func (c *LobbyCoordinator) Clear() {
	c.mu.Lock()
	c.membership = nil
	c.mu.Unlock()
	c.notify()
}

func (c *LobbyCoordinator) setJoining(v bool) {
	c.mu.Lock()
	c.joining = v
	c.mu.Unlock()
	c.notify()
}

func (c *LobbyCoordinator) notify() {
	if c.feed != nil {
		c.feed.BroadcastChange(SliceLobby)
	}
}
