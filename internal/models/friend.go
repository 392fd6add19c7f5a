package models

type FriendStatus string

const (
	FriendOnline  FriendStatus = "online"
	FriendOffline FriendStatus = "offline"
	FriendInGame  FriendStatus = "ingame"
)

type Friend struct {
	UserID   string       `json:"user_id"`
	Username string       `json:"username"`
	Status   FriendStatus `json:"status"`
}

// UniqueFriends drops repeated user ids, keeping the first occurrence.
func UniqueFriends(in []Friend) []Friend {
	seen := make(map[string]bool, len(in))
	out := make([]Friend, 0, len(in))
	for _, f := range in {
		if f.UserID == "" || seen[f.UserID] {
			continue
		}
		seen[f.UserID] = true
		out = append(out, f)
	}
	return out
}
