package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"paperpayout-client/internal/logger"
	"paperpayout-client/internal/models"
	"paperpayout-client/internal/services"
)

// ViewHandler turns user intents into controller calls and answers with the
// freshly composed view.
type ViewHandler struct {
	app *services.App
	log *zap.Logger
}

func NewViewHandler(app *services.App, log *zap.Logger) *ViewHandler {
	return &ViewHandler{
		app: app,
		log: logger.OrNop(log).Named("view"),
	}
}

type loginIntent struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupIntent struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type promptIntent struct {
	Mode models.AuthMode `json:"mode"`
}

type wagerIntent struct {
	Amount int `json:"amount"`
}

type periodIntent struct {
	Period string `json:"period"`
}

type withdrawIntent struct {
	ToAddress string          `json:"to_address"`
	AmountSOL json.RawMessage `json:"amount_sol"`
}

func (h *ViewHandler) GetView(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"view": Compose(h.app)})
}

func (h *ViewHandler) Login(c *gin.Context) {
	var req loginIntent
	if !h.bind(c, &req) {
		return
	}
	if _, err := h.app.Sessions.Login(c.Request.Context(), req.Email, req.Password); err != nil {
		h.fail(c, err, "Login failed")
		return
	}
	h.ok(c, "")
}

func (h *ViewHandler) Signup(c *gin.Context) {
	var req signupIntent
	if !h.bind(c, &req) {
		return
	}
	if _, err := h.app.Sessions.Signup(c.Request.Context(), req.Email, req.Username, req.Password); err != nil {
		h.fail(c, err, "Sign up failed")
		return
	}
	h.ok(c, "")
}

func (h *ViewHandler) Logout(c *gin.Context) {
	h.app.Sessions.Logout()
	h.ok(c, "")
}

func (h *ViewHandler) OpenAuth(c *gin.Context) {
	var req promptIntent
	_ = c.ShouldBindJSON(&req)
	h.app.Sessions.RequestAuth(req.Mode)
	h.ok(c, "")
}

func (h *ViewHandler) DismissAuth(c *gin.Context) {
	h.app.Sessions.DismissAuth()
	h.ok(c, "")
}

func (h *ViewHandler) RefreshWallet(c *gin.Context) {
	if err := h.app.Wallet.Refresh(c.Request.Context()); err != nil {
		h.log.Debug("wallet refresh intent", zap.Error(err))
	}
	h.ok(c, "")
}

func (h *ViewHandler) Withdraw(c *gin.Context) {
	var req withdrawIntent
	if !h.bind(c, &req) {
		return
	}
	amount, err := models.ParseAmountSOL(strings.Trim(string(req.AmountSOL), `"`))
	if err != nil {
		h.fail(c, &services.Error{Kind: services.KindValidation, Op: "wallet.withdraw", Message: err.Error(), Err: err}, "Withdrawal failed")
		return
	}
	if err := h.app.Wallet.Withdraw(c.Request.Context(), req.ToAddress, amount); err != nil {
		h.fail(c, err, "Withdrawal failed")
		return
	}
	h.ok(c, "Withdrawal initiated")
}

func (h *ViewHandler) Deposit(c *gin.Context) {
	info, err := h.app.Wallet.Deposit()
	if err != nil {
		h.fail(c, err, "No wallet found")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"view":    Compose(h.app),
		"message": info.Message,
		"deposit": info,
	})
}

func (h *ViewHandler) SelectWager(c *gin.Context) {
	var req wagerIntent
	if !h.bind(c, &req) {
		return
	}
	if err := h.app.Lobby.SelectWager(req.Amount); err != nil {
		h.fail(c, err, "Invalid wager")
		return
	}
	h.ok(c, "")
}

func (h *ViewHandler) JoinGame(c *gin.Context) {
	membership, err := h.app.Lobby.JoinGame(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Unable to join lobby")
		return
	}
	if membership == nil {
		h.ok(c, "Select a wager first")
		return
	}
	h.ok(c, membership.Summary())
}

func (h *ViewHandler) SetPeriod(c *gin.Context) {
	var req periodIntent
	if !h.bind(c, &req) {
		return
	}
	period, err := models.ParsePeriod(req.Period)
	if err != nil {
		h.fail(c, &services.Error{Kind: services.KindValidation, Op: "leaderboard.period", Message: err.Error(), Err: err}, "Invalid period")
		return
	}
	if err := h.app.Board.SetPeriod(c.Request.Context(), period); err != nil {
		h.log.Debug("period intent", zap.Error(err))
	}
	h.ok(c, "")
}

func (h *ViewHandler) RefreshStats(c *gin.Context) {
	if err := h.app.Board.Tick(c.Request.Context()); err != nil {
		h.log.Debug("stats refresh intent", zap.Error(err))
	}
	h.ok(c, "")
}

func (h *ViewHandler) RefreshFriends(c *gin.Context) {
	if err := h.app.Friends.Refresh(c.Request.Context()); err != nil {
		h.log.Debug("friends refresh intent", zap.Error(err))
	}
	h.ok(c, "")
}

func Healthz(c *gin.Context) {
	c.Status(http.StatusOK)
}

func (h *ViewHandler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"kind":    services.KindValidation,
			"details": err.Error(),
		})
		return false
	}
	return true
}

func (h *ViewHandler) ok(c *gin.Context, message string) {
	body := gin.H{"view": Compose(h.app)}
	if message != "" {
		body["message"] = message
	}
	c.JSON(http.StatusOK, body)
}

// fail maps a classified error to a status and a user-facing message.
func (h *ViewHandler) fail(c *gin.Context, err error, fallback string) {
	status := http.StatusBadGateway
	kind := services.KindOf(err)

	var e *services.Error
	switch {
	case errors.Is(err, services.ErrAuthRequired):
		status = http.StatusUnauthorized
	case kind == services.KindValidation:
		status = http.StatusBadRequest
	case kind == services.KindBusy:
		status = http.StatusConflict
	case kind == services.KindHTTP && errors.As(err, &e) && e.Status >= 400 && e.Status < 500:
		status = e.Status
	}

	if status >= http.StatusInternalServerError {
		h.log.Warn("intent failed", zap.String("path", c.FullPath()), zap.String("kind", string(kind)), zap.Error(err))
	}

	c.JSON(status, gin.H{
		"error": services.UserMessage(err, fallback),
		"kind":  kind,
		"view":  Compose(h.app),
	})
}
