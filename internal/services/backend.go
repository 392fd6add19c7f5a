package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"paperpayout-client/internal/config"
	"paperpayout-client/internal/logger"
	"paperpayout-client/internal/models"
)

const (
	PathStats        = "/stats"
	PathLeaderboard  = "/leaderboard"
	PathFriends      = "/friends/%s"
	PathWallet       = "/wallet/%s"
	PathWithdraw     = "/wallet/withdraw"
	PathLobbyJoin    = "/lobby/join"
	PathAuthLogin    = "/auth/login"
	PathAuthSignup   = "/auth/signup"
	maxResponseBytes = 1 << 20
)

// BackendClient is the single gateway to the game backend. Every call
// returns either a decoded payload or an *Error; nothing panics past it.
type BackendClient struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

type errorBody struct {
	Detail string `json:"detail"`
}

func NewBackendClient(cfg *config.Config, httpClient *http.Client, log *zap.Logger) *BackendClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &BackendClient{
		baseURL: strings.TrimRight(cfg.BackendURL, "/"),
		http:    httpClient,
		log:     logger.OrNop(log).Named("backend"),
	}
}

func (c *BackendClient) Stats(ctx context.Context) (*models.GlobalStats, error) {
	var out models.GlobalStats
	if err := c.do(ctx, http.MethodGet, PathStats, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *BackendClient) Leaderboard(ctx context.Context, period models.Period) ([]models.LeaderboardEntry, error) {
	var out []models.LeaderboardEntry
	path := PathLeaderboard + "?period=" + url.QueryEscape(string(period))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BackendClient) Friends(ctx context.Context, userID string) ([]models.Friend, error) {
	var out []models.Friend
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf(PathFriends, url.PathEscape(userID)), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BackendClient) Wallet(ctx context.Context, userID string) (*models.Wallet, error) {
	var out models.Wallet
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf(PathWallet, url.PathEscape(userID)), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Withdraw only cares about acceptance; the ack body is not interpreted.
func (c *BackendClient) Withdraw(ctx context.Context, req *models.WithdrawRequest) error {
	return c.do(ctx, http.MethodPost, PathWithdraw, req, nil)
}

func (c *BackendClient) JoinLobby(ctx context.Context, req *models.JoinRequest) (*models.JoinResponse, error) {
	var out models.JoinResponse
	if err := c.do(ctx, http.MethodPost, PathLobbyJoin, req, &out); err != nil {
		return nil, err
	}
	if err := out.Validate(); err != nil {
		return nil, &Error{Kind: KindDecode, Op: PathLobbyJoin, Err: err}
	}
	return &out, nil
}

func (c *BackendClient) Login(ctx context.Context, req *models.LoginRequest) (*models.Session, error) {
	return c.auth(ctx, PathAuthLogin, req)
}

func (c *BackendClient) Signup(ctx context.Context, req *models.SignupRequest) (*models.Session, error) {
	return c.auth(ctx, PathAuthSignup, req)
}

func (c *BackendClient) auth(ctx context.Context, path string, body any) (*models.Session, error) {
	var out models.Session
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	if !out.Valid() {
		return nil, &Error{Kind: KindDecode, Op: path, Err: errors.New("response has no user_id")}
	}
	return &out, nil
}

func (c *BackendClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: KindValidation, Op: path, Message: "request could not be encoded", Err: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &Error{Kind: KindNetwork, Op: path, Err: err}
	}
	requestID := models.NewRequestID()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("request failed", zap.String("method", method), zap.String("path", path),
			zap.String("request_id", requestID), zap.Error(err))
		return &Error{Kind: KindNetwork, Op: path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &Error{Kind: KindNetwork, Op: path, Status: resp.StatusCode, Err: err}
	}

	c.log.Debug("request done", zap.String("method", method), zap.String("path", path),
		zap.String("request_id", requestID), zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// A body that is not {detail} degrades to an empty message.
		var eb errorBody
		_ = json.Unmarshal(data, &eb)
		return &Error{Kind: KindHTTP, Op: path, Status: resp.StatusCode, Message: eb.Detail,
			Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: KindDecode, Op: path, Status: resp.StatusCode, Err: err}
	}
	return nil
}
