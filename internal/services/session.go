package services

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"paperpayout-client/internal/logger"
	"paperpayout-client/internal/models"
)

type SessionState string

const (
	StateAnonymous      SessionState = "anonymous"
	StateAuthenticating SessionState = "authenticating"
	StateAuthenticated  SessionState = "authenticated"
)

type AuthBackend interface {
	Login(ctx context.Context, req *models.LoginRequest) (*models.Session, error)
	Signup(ctx context.Context, req *models.SignupRequest) (*models.Session, error)
}

// AuthPrompt is whether the login/signup dialog should be showing.
type AuthPrompt struct {
	Open bool            `json:"open"`
	Mode models.AuthMode `json:"mode"`
}

// SessionManager owns the identity of the running client. Every transition
// bumps the epoch; work started under an older epoch must not be applied.
type SessionManager struct {
	backend    AuthBackend
	registry   InflightRegistry
	feed       Broadcaster
	log        *zap.Logger
	instanceID string

	mu              sync.RWMutex
	state           SessionState
	session         *models.Session
	epoch           uint64
	prompt          AuthPrompt
	onAuthenticated []func(models.Session, uint64)
	onAnonymous     []func()
}

func NewSessionManager(backend AuthBackend, registry InflightRegistry, feed Broadcaster, log *zap.Logger) *SessionManager {
	return &SessionManager{
		backend:    backend,
		registry:   registry,
		feed:       feed,
		log:        logger.OrNop(log).Named("session"),
		instanceID: uuid.NewString(),
		state:      StateAnonymous,
		prompt:     AuthPrompt{Mode: models.AuthModeLogin},
	}
}

// OnAuthenticated registers fn to run after every transition into
// Authenticated, with the new session and its epoch.
func (m *SessionManager) OnAuthenticated(fn func(models.Session, uint64)) {
	m.mu.Lock()
	m.onAuthenticated = append(m.onAuthenticated, fn)
	m.mu.Unlock()
}

// OnAnonymous registers fn to run on every logout.
func (m *SessionManager) OnAnonymous(fn func()) {
	m.mu.Lock()
	m.onAnonymous = append(m.onAnonymous, fn)
	m.mu.Unlock()
}

func (m *SessionManager) Login(ctx context.Context, email, password string) (*models.Session, error) {
	req := &models.LoginRequest{Email: email, Password: password}
	if err := req.Validate(); err != nil {
		return nil, validationError("login", err)
	}
	return m.authenticate(ctx, "login", func(ctx context.Context) (*models.Session, error) {
		return m.backend.Login(ctx, req)
	})
}

func (m *SessionManager) Signup(ctx context.Context, email, username, password string) (*models.Session, error) {
	req := &models.SignupRequest{Email: email, Username: username, Password: password}
	if err := req.Validate(); err != nil {
		return nil, validationError("signup", err)
	}
	return m.authenticate(ctx, "signup", func(ctx context.Context) (*models.Session, error) {
		return m.backend.Signup(ctx, req)
	})
}

func (m *SessionManager) authenticate(ctx context.Context, op string, call func(context.Context) (*models.Session, error)) (*models.Session, error) {
	if m.State() == StateAuthenticated {
		return nil, validationError(op, errors.New("already logged in"))
	}

	release, err := m.registry.Acquire(ctx, OpAuth, m.instanceID)
	if errors.Is(err, ErrBusy) {
		return nil, busyError(op)
	}
	if err != nil {
		return nil, err
	}
	defer release()

	m.mu.Lock()
	if m.state == StateAuthenticated {
		m.mu.Unlock()
		return nil, validationError(op, errors.New("already logged in"))
	}
	m.state = StateAuthenticating
	epoch := m.epoch
	m.mu.Unlock()
	m.notify()

	sess, err := call(ctx)

	m.mu.Lock()
	if m.epoch != epoch || m.state != StateAuthenticating {
		m.mu.Unlock()
		m.log.Debug("discarding auth result for superseded attempt", zap.String("op", op))
		if err != nil {
			return nil, err
		}
		return nil, validationError(op, errors.New("login was cancelled"))
	}
	if err != nil {
		m.state = StateAnonymous
		m.mu.Unlock()
		m.notify()
		m.log.Info("authentication failed", zap.String("op", op), zap.Error(err))
		return nil, err
	}

	m.epoch++
	m.state = StateAuthenticated
	m.session = &models.Session{UserID: sess.UserID, Username: sess.Username}
	m.prompt.Open = false
	current := *m.session
	newEpoch := m.epoch
	hooks := append([]func(models.Session, uint64){}, m.onAuthenticated...)
	m.mu.Unlock()

	m.log.Info("authenticated", zap.String("op", op), zap.String("user_id", current.UserID))
	m.notify()

	for _, fn := range hooks {
		fn(current, newEpoch)
	}

	return &current, nil
}

// Logout is immediate and local. Dependent state is cleared by the
// OnAnonymous hooks before Logout returns.
func (m *SessionManager) Logout() {
	m.mu.Lock()
	prev := m.session
	m.state = StateAnonymous
	m.session = nil
	m.epoch++
	hooks := append([]func(){}, m.onAnonymous...)
	m.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}

	if prev != nil {
		m.log.Info("logged out", zap.String("user_id", prev.UserID))
	}
	m.notify()
}

// RequestAuth opens the auth prompt. It does nothing once authenticated.
func (m *SessionManager) RequestAuth(mode models.AuthMode) {
	if !mode.Valid() {
		mode = models.AuthModeLogin
	}
	m.mu.Lock()
	if m.state == StateAuthenticated {
		m.mu.Unlock()
		return
	}
	m.prompt = AuthPrompt{Open: true, Mode: mode}
	m.mu.Unlock()
	m.notify()
}

func (m *SessionManager) DismissAuth() {
	m.mu.Lock()
	m.prompt.Open = false
	m.mu.Unlock()
	m.notify()
}

func (m *SessionManager) Prompt() AuthPrompt {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.prompt
}

func (m *SessionManager) State() SessionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Current returns the active session and its epoch.
func (m *SessionManager) Current() (models.Session, uint64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateAuthenticated || m.session == nil {
		return models.Session{}, m.epoch, false
	}
	return *m.session, m.epoch, true
}

// IsCurrent reports whether epoch still names the authenticated session.
func (m *SessionManager) IsCurrent(epoch uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateAuthenticated && m.epoch == epoch
}

func (m *SessionManager) notify() {
	if m.feed != nil {
		m.feed.BroadcastChange(SliceSession)
	}
}
