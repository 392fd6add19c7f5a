package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"paperpayout-client/internal/logger"
	"paperpayout-client/internal/models"
)

type WalletBackend interface {
	Wallet(ctx context.Context, userID string) (*models.Wallet, error)
	Withdraw(ctx context.Context, req *models.WithdrawRequest) error
}

// WalletController owns the wallet of the current session. Refreshes for the
// same session coalesce into one request; withdrawals are single-flight.
type WalletController struct {
	backend  WalletBackend
	sessions *SessionManager
	registry InflightRegistry
	feed     Broadcaster
	log      *zap.Logger
	group    singleflight.Group

	mu          sync.RWMutex
	wallet      *models.Wallet
	refreshing  int
	withdrawing bool
	// mutations counts accepted withdrawals; a refresh issued before the
	// latest one may carry a pre-withdrawal balance and is dropped.
	mutations uint64
}

func NewWalletController(backend WalletBackend, sessions *SessionManager, registry InflightRegistry, feed Broadcaster, log *zap.Logger) *WalletController {
	return &WalletController{
		backend:  backend,
		sessions: sessions,
		registry: registry,
		feed:     feed,
		log:      logger.OrNop(log).Named("wallet"),
	}
}

// Refresh fetches the wallet for the current session. On failure the previous
// wallet is kept and the error returned for logging only.
func (c *WalletController) Refresh(ctx context.Context) error {
	sess, epoch, ok := c.sessions.Current()
	if !ok {
		return &Error{Kind: KindValidation, Op: "wallet.refresh", Message: "not logged in", Err: ErrNotAuthenticated}
	}

	key := fmt.Sprintf("%s:%d", sess.UserID, epoch)
	_, err, shared := c.group.Do(key, func() (any, error) {
		c.setRefreshing(1)
		defer c.setRefreshing(-1)

		c.mu.RLock()
		issuedAt := c.mutations
		c.mu.RUnlock()

		w, err := c.backend.Wallet(ctx, sess.UserID)
		if err != nil {
			c.log.Debug("wallet refresh failed, keeping previous", zap.String("user_id", sess.UserID), zap.Error(err))
			return nil, err
		}
		c.commit(w, epoch, issuedAt)
		return w, nil
	})
	if shared {
		c.log.Debug("wallet refresh coalesced", zap.String("user_id", sess.UserID))
	}
	return err
}

func (c *WalletController) commit(w *models.Wallet, epoch, issuedAt uint64) {
	c.mu.Lock()
	if !c.sessions.IsCurrent(epoch) {
		c.mu.Unlock()
		c.log.Debug("discarding wallet for ended session")
		return
	}
	if issuedAt != c.mutations {
		c.mu.Unlock()
		c.log.Debug("discarding wallet read issued before a withdrawal")
		return
	}
	c.wallet = w
	c.mu.Unlock()
	c.notify()
}

// Withdraw validates locally, sends the withdrawal and, once accepted,
// re-reads the wallet with a request issued after the acceptance.
func (c *WalletController) Withdraw(ctx context.Context, toAddress string, amountSOL float64) error {
	const op = "wallet.withdraw"

	sess, epoch, ok := c.sessions.Current()
	if !ok {
		return &Error{Kind: KindValidation, Op: op, Message: "not logged in", Err: ErrNotAuthenticated}
	}
	toAddress = strings.TrimSpace(toAddress)
	if toAddress == "" {
		return validationError(op, errors.New("destination address is required"))
	}
	if math.IsNaN(amountSOL) || math.IsInf(amountSOL, 0) || amountSOL <= 0 {
		return validationError(op, errors.New("amount must be a positive number"))
	}

	release, err := c.registry.Acquire(ctx, OpWithdraw, sess.UserID)
	if errors.Is(err, ErrBusy) {
		return busyError(op)
	}
	if err != nil {
		return err
	}
	defer release()

	c.setWithdrawing(true)
	defer c.setWithdrawing(false)

	err = c.backend.Withdraw(ctx, &models.WithdrawRequest{
		UserID:    sess.UserID,
		ToAddress: toAddress,
		AmountSOL: amountSOL,
	})
	if err != nil {
		c.log.Warn("withdrawal rejected", zap.String("user_id", sess.UserID), zap.Error(err))
		return err
	}

	c.mu.Lock()
	c.mutations++
	c.mu.Unlock()
	c.log.Info("withdrawal accepted", zap.String("user_id", sess.UserID), zap.Float64("amount_sol", amountSOL))

	c.group.Forget(fmt.Sprintf("%s:%d", sess.UserID, epoch))
	if err := c.Refresh(ctx); err != nil {
		c.log.Debug("post-withdrawal refresh failed", zap.Error(err))
	}
	return nil
}

// Deposit has no network effect: funds arrive at the wallet address.
func (c *WalletController) Deposit() (*models.DepositInfo, error) {
	if _, _, ok := c.sessions.Current(); !ok {
		return nil, &Error{Kind: KindValidation, Op: "wallet.deposit", Message: "not logged in", Err: ErrNotAuthenticated}
	}
	w := c.Wallet()
	if w == nil {
		return nil, &Error{Kind: KindValidation, Op: "wallet.deposit", Message: "no wallet found"}
	}
	return &models.DepositInfo{
		Address: w.Address,
		Message: "Deposit via your unique address",
	}, nil
}

func (c *WalletController) Wallet() *models.Wallet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.wallet == nil {
		return nil
	}
	w := *c.wallet
	return &w
}

func (c *WalletController) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshing > 0 || c.withdrawing
}

// Clear drops the wallet; it is called when the session ends.
func (c *WalletController) Clear() {
	c.mu.Lock()
	c.wallet = nil
	c.mu.Unlock()
	c.notify()
}

func (c *WalletController) setRefreshing(delta int) {
	c.mu.Lock()
	c.refreshing += delta
	c.mu.Unlock()
	c.notify()
}

func (c *WalletController) setWithdrawing(v bool) {
	c.mu.Lock()
	c.withdrawing = v
	c.mu.Unlock()
	c.notify()
}

func (c *WalletController) notify() {
	if c.feed != nil {
		c.feed.BroadcastChange(SliceWallet)
	}
}
