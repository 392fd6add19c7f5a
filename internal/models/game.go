package models

import "fmt"

type LobbyStatus string

const (
	LobbyIdle    LobbyStatus = "idle"
	LobbyJoined  LobbyStatus = "joined"
	LobbyStarted LobbyStatus = "started"
)

type LobbyMembership struct {
	Status     LobbyStatus `json:"status"`
	Players    []string    `json:"players"`
	MaxPlayers int         `json:"max_players"`
	WagerUSD   Wager       `json:"wager_usd"`
}

type JoinRequest struct {
	UserID   string `json:"user_id"`
	WagerUSD Wager  `json:"wager_usd"`
}

type JoinResponse struct {
	Status     LobbyStatus `json:"status"`
	Players    []string    `json:"players"`
	MaxPlayers int         `json:"max_players"`
}

func (r *JoinResponse) Validate() error {
	switch r.Status {
	case LobbyJoined, LobbyStarted:
	default:
		return fmt.Errorf("unexpected lobby status: %q", r.Status)
	}
	return nil
}

// Terminal reports whether the match has begun; nothing client-side follows it.
func (m *LobbyMembership) Terminal() bool {
	return m != nil && m.Status == LobbyStarted
}

func (m *LobbyMembership) Summary() string {
	if m == nil {
		return ""
	}
	if m.Status == LobbyStarted {
		return "Match started!"
	}
	return fmt.Sprintf("Joined lobby (%d/%d)", len(m.Players), m.MaxPlayers)
}
