package services

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"paperpayout-client/internal/logger"
	"paperpayout-client/internal/models"
)

type FriendsBackend interface {
	Friends(ctx context.Context, userID string) ([]models.Friend, error)
}

type FriendsDirectory struct {
	backend  FriendsBackend
	sessions *SessionManager
	feed     Broadcaster
	log      *zap.Logger

	mu      sync.RWMutex
	friends []models.Friend
}

func NewFriendsDirectory(backend FriendsBackend, sessions *SessionManager, feed Broadcaster, log *zap.Logger) *FriendsDirectory {
	return &FriendsDirectory{
		backend:  backend,
		sessions: sessions,
		feed:     feed,
		log:      logger.OrNop(log).Named("friends"),
		friends:  []models.Friend{},
	}
}

// Refresh replaces the friend set wholesale. Anonymous callers get a no-op.
func (d *FriendsDirectory) Refresh(ctx context.Context) error {
	sess, epoch, ok := d.sessions.Current()
	if !ok {
		return nil
	}

	list, err := d.backend.Friends(ctx, sess.UserID)
	if err != nil {
		d.log.Debug("friends refresh failed, keeping previous", zap.String("user_id", sess.UserID), zap.Error(err))
		return err
	}

	d.mu.Lock()
	if !d.sessions.IsCurrent(epoch) {
		d.mu.Unlock()
		d.log.Debug("discarding friends for ended session", zap.String("user_id", sess.UserID))
		return nil
	}
	d.friends = models.UniqueFriends(list)
	d.mu.Unlock()

	d.notify()
	return nil
}

func (d *FriendsDirectory) Friends() []models.Friend {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]models.Friend{}, d.friends...)
}

// PlayingCount is the number of friends currently in a match.
func (d *FriendsDirectory) PlayingCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := 0
	for _, f := range d.friends {
		if f.Status == models.FriendInGame {
			n++
		}
	}
	return n
}

func (d *FriendsDirectory) Clear() {
	d.mu.Lock()
	d.friends = []models.Friend{}
	d.mu.Unlock()
	d.notify()
}

func (d *FriendsDirectory) notify() {
	if d.feed != nil {
		d.feed.BroadcastChange(SliceFriends)
	}
}
