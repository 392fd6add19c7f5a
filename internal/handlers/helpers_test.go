package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"paperpayout-client/internal/handlers"
	"paperpayout-client/internal/models"
	"paperpayout-client/internal/services"
)

// stubBackend answers every backend call from memory.
type stubBackend struct {
	mu        sync.Mutex
	loginErr  error
	joinErr   error
	wallet    models.Wallet
	withdrawn []models.WithdrawRequest
	joins     int
}

func newStubBackend() *stubBackend {
	return &stubBackend{wallet: models.Wallet{Address: "addr1", BalanceUSD: 25.5, BalanceSOL: 0.25}}
}

func (s *stubBackend) Login(_ context.Context, req *models.LoginRequest) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return &models.Session{UserID: "u1", Username: "alice"}, nil
}

func (s *stubBackend) Signup(_ context.Context, req *models.SignupRequest) (*models.Session, error) {
	return &models.Session{UserID: "u2", Username: req.Username}, nil
}

func (s *stubBackend) Wallet(context.Context, string) (*models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.wallet
	return &w, nil
}

func (s *stubBackend) Withdraw(_ context.Context, req *models.WithdrawRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.withdrawn = append(s.withdrawn, *req)
	s.wallet.BalanceSOL -= req.AmountSOL
	return nil
}

func (s *stubBackend) JoinLobby(_ context.Context, req *models.JoinRequest) (*models.JoinResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joins++
	if s.joinErr != nil {
		return nil, s.joinErr
	}
	return &models.JoinResponse{Status: models.LobbyJoined, Players: []string{req.UserID}, MaxPlayers: 4}, nil
}

func (s *stubBackend) Stats(context.Context) (*models.GlobalStats, error) {
	return &models.GlobalStats{PlayersInGame: 7, GlobalPlayerWinningsUSD: 1200}, nil
}

func (s *stubBackend) Leaderboard(_ context.Context, period models.Period) ([]models.LeaderboardEntry, error) {
	return []models.LeaderboardEntry{
		{UserID: "a", Username: string(period) + "-1", WinningsUSD: 40},
		{UserID: "b", Username: string(period) + "-2", WinningsUSD: 30},
		{UserID: "c", Username: string(period) + "-3", WinningsUSD: 20},
		{UserID: "d", Username: string(period) + "-4", WinningsUSD: 10},
	}, nil
}

func (s *stubBackend) Friends(context.Context, string) ([]models.Friend, error) {
	return []models.Friend{
		{UserID: "f1", Username: "bob", Status: models.FriendInGame},
		{UserID: "f2", Username: "cat", Status: models.FriendOnline},
	}, nil
}

type env struct {
	app     *services.App
	backend *stubBackend
	router  *gin.Engine
}

func newEnv(t *testing.T, jwtService *services.JWTService) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend := newStubBackend()
	log := zaptest.NewLogger(t)
	app := services.NewApp(backend, services.NewMemoryRegistry(), log)
	t.Cleanup(app.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return &env{
		app:     app,
		backend: backend,
		router:  handlers.SetupRouter(ctx, app, jwtService, log),
	}
}

type viewResponse struct {
	View    handlers.ViewState `json:"view"`
	Message string             `json:"message"`
	Error   string             `json:"error"`
	Kind    string             `json:"kind"`
}

func (e *env) do(t *testing.T, method, path string, body any) (int, viewResponse) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var resp viewResponse
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w.Code, resp
}
