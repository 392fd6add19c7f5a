package services

import "sync"

// Slice names one independently owned piece of client state.
type Slice string

const (
	SliceSession     Slice = "session"
	SliceWallet      Slice = "wallet"
	SliceLobby       Slice = "lobby"
	SliceLeaderboard Slice = "leaderboard"
	SliceStats       Slice = "stats"
	SliceFriends     Slice = "friends"
)

type Broadcaster interface {
	BroadcastChange(slice Slice)
}

// ChangeFeed fans state change notifications out to any number of attached
// broadcasters. The zero value is ready to use.
type ChangeFeed struct {
	mu   sync.RWMutex
	next int
	subs map[int]Broadcaster
}

func (f *ChangeFeed) Attach(b Broadcaster) (detach func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.subs == nil {
		f.subs = make(map[int]Broadcaster)
	}
	id := f.next
	f.next++
	f.subs[id] = b

	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

func (f *ChangeFeed) BroadcastChange(slice Slice) {
	if f == nil {
		return
	}
	f.mu.RLock()
	subs := make([]Broadcaster, 0, len(f.subs))
	for _, b := range f.subs {
		subs = append(subs, b)
	}
	f.mu.RUnlock()

	for _, b := range subs {
		b.BroadcastChange(slice)
	}
}

// BroadcastFunc adapts a plain function to Broadcaster.
type BroadcastFunc func(slice Slice)

func (fn BroadcastFunc) BroadcastChange(slice Slice) { fn(slice) }
