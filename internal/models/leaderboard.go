package models

type LeaderboardEntry struct {
	UserID      string  `json:"user_id"`
	Username    string  `json:"username"`
	WinningsUSD float64 `json:"winnings_usd"`
}

type GlobalStats struct {
	PlayersInGame           int     `json:"players_in_game"`
	GlobalPlayerWinningsUSD float64 `json:"global_player_winnings_usd"`
}
