package services_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"paperpayout-client/internal/config"
	"paperpayout-client/internal/models"
	"paperpayout-client/internal/services"
)

// gate parks backend handlers for a key until released.
type gate struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	done    sync.Once
}

func (g *gate) Open() { g.done.Do(func() { close(g.release) }) }

func (g *gate) WaitEntered(t *testing.T) {
	t.Helper()
	select {
	case <-g.entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for request to reach backend")
	}
}

type failure struct {
	status int
	body   string
}

// fakeBackend is an in-process game backend speaking the real wire format.
type fakeBackend struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	hits     map[string]int
	gates    map[string]*gate
	failures map[string]failure

	session  models.Session
	wallet   models.Wallet
	friends  []models.Friend
	stats    models.GlobalStats
	boards   map[models.Period][]models.LeaderboardEntry
	joinResp models.JoinResponse
	joinReqs []models.JoinRequest
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fakeBackend{
		t:        t,
		hits:     make(map[string]int),
		gates:    make(map[string]*gate),
		failures: make(map[string]failure),
		session:  models.Session{UserID: "u1", Username: "alice"},
		wallet:   models.Wallet{Address: "abc", BalanceUSD: 10, BalanceSOL: 0.1},
		friends: []models.Friend{
			{UserID: "u2", Username: "bob", Status: models.FriendInGame},
			{UserID: "u3", Username: "cat", Status: models.FriendOffline},
		},
		stats: models.GlobalStats{PlayersInGame: 12, GlobalPlayerWinningsUSD: 3400},
		boards: map[models.Period][]models.LeaderboardEntry{
			models.PeriodAll:     {{UserID: "u9", Username: "zed", WinningsUSD: 900}},
			models.PeriodMonthly: {{UserID: "u8", Username: "mia", WinningsUSD: 300}},
			models.PeriodDaily:   {{UserID: "u7", Username: "dan", WinningsUSD: 20}},
		},
		joinResp: models.JoinResponse{Status: models.LobbyJoined, Players: []string{"u1"}, MaxPlayers: 2},
	}

	r := gin.New()
	r.GET("/stats", func(c *gin.Context) {
		if f.pass(c, "stats") {
			f.mu.Lock()
			defer f.mu.Unlock()
			c.JSON(http.StatusOK, f.stats)
		}
	})
	r.GET("/leaderboard", func(c *gin.Context) {
		period := models.Period(c.Query("period"))
		if f.pass(c, "leaderboard:"+string(period)) {
			f.mu.Lock()
			defer f.mu.Unlock()
			c.JSON(http.StatusOK, f.boards[period])
		}
	})
	r.GET("/friends/:user_id", func(c *gin.Context) {
		if f.pass(c, "friends") {
			f.mu.Lock()
			defer f.mu.Unlock()
			c.JSON(http.StatusOK, f.friends)
		}
	})
	r.GET("/wallet/:user_id", func(c *gin.Context) {
		if f.pass(c, "wallet") {
			f.mu.Lock()
			defer f.mu.Unlock()
			c.JSON(http.StatusOK, f.wallet)
		}
	})
	r.POST("/wallet/withdraw", func(c *gin.Context) {
		var req models.WithdrawRequest
		assert.NoError(t, c.ShouldBindJSON(&req))
		if f.pass(c, "withdraw") {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.wallet.BalanceSOL -= req.AmountSOL
			c.JSON(http.StatusOK, gin.H{"status": "pending"})
		}
	})
	r.POST("/lobby/join", func(c *gin.Context) {
		var req models.JoinRequest
		assert.NoError(t, c.ShouldBindJSON(&req))
		if f.pass(c, "join") {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.joinReqs = append(f.joinReqs, req)
			c.JSON(http.StatusOK, f.joinResp)
		}
	})
	r.POST("/auth/login", func(c *gin.Context) {
		if f.pass(c, "login") {
			f.mu.Lock()
			defer f.mu.Unlock()
			c.JSON(http.StatusOK, f.session)
		}
	})
	r.POST("/auth/signup", func(c *gin.Context) {
		if f.pass(c, "signup") {
			f.mu.Lock()
			defer f.mu.Unlock()
			c.JSON(http.StatusOK, f.session)
		}
	})

	f.srv = httptest.NewServer(r)
	t.Cleanup(f.srv.Close)
	return f
}

// pass records the hit, waits on a gate if one is set and writes a canned
// failure if configured. It reports whether the handler should answer.
func (f *fakeBackend) pass(c *gin.Context, key string) bool {
	f.mu.Lock()
	f.hits[key]++
	g := f.gates[key]
	fail, failing := f.failures[key]
	f.mu.Unlock()

	if g != nil {
		g.once.Do(func() { close(g.entered) })
		<-g.release
	}
	if failing {
		c.Data(fail.status, "application/json", []byte(fail.body))
		return false
	}
	return true
}

func (f *fakeBackend) hold(key string) *gate {
	g := &gate{entered: make(chan struct{}), release: make(chan struct{})}
	f.mu.Lock()
	f.gates[key] = g
	f.mu.Unlock()
	f.t.Cleanup(g.Open)
	return g
}

func (f *fakeBackend) fail(key string, status int, body string) {
	f.mu.Lock()
	f.failures[key] = failure{status: status, body: body}
	f.mu.Unlock()
}

func (f *fakeBackend) heal(key string) {
	f.mu.Lock()
	delete(f.failures, key)
	f.mu.Unlock()
}

func (f *fakeBackend) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[key]
}

func (f *fakeBackend) set(fn func(f *fakeBackend)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeBackend) client() *services.BackendClient {
	cfg := &config.Config{BackendURL: f.srv.URL, RequestTimeout: 5 * time.Second}
	return services.NewBackendClient(cfg, nil, zaptest.NewLogger(f.t))
}

func newTestApp(t *testing.T, f *fakeBackend) *services.App {
	t.Helper()
	app := services.NewApp(f.client(), services.NewMemoryRegistry(), zaptest.NewLogger(t))
	t.Cleanup(app.Close)
	return app
}

// loginAndSettle logs in and waits for the post-login fetches to land.
func loginAndSettle(t *testing.T, app *services.App, f *fakeBackend) {
	t.Helper()
	_, err := app.Sessions.Login(context.Background(), "alice@example.com", "secret")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return app.Wallet.Wallet() != nil && len(app.Friends.Friends()) > 0
	}, 2*time.Second, 5*time.Millisecond)
}
