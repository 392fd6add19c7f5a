package handlers

import (
	"paperpayout-client/internal/models"
	"paperpayout-client/internal/services"
)

const topPlayers = 3

type ViewState struct {
	Session     SessionPanel       `json:"session"`
	Wallet      *WalletPanel       `json:"wallet"`
	Lobby       LobbyPanel         `json:"lobby"`
	Leaderboard LeaderboardPanel   `json:"leaderboard"`
	Stats       models.GlobalStats `json:"stats"`
	Friends     *FriendsPanel      `json:"friends"`
}

type SessionPanel struct {
	State  services.SessionState `json:"state"`
	User   *models.Session       `json:"user"`
	Prompt services.AuthPrompt   `json:"auth_prompt"`
}

type WalletPanel struct {
	Loading bool               `json:"loading"`
	Wallet  *models.WalletView `json:"wallet"`
}

type LobbyPanel struct {
	WagerOptions []models.Wager         `json:"wager_options"`
	Selected     models.Wager           `json:"selected_wager,omitempty"`
	Joining      bool                   `json:"joining"`
	CanJoin      bool                   `json:"can_join"`
	Membership   *models.LobbyMembership `json:"membership"`
}

type LeaderboardPanel struct {
	Period  models.Period             `json:"period"`
	Periods []models.Period           `json:"periods"`
	Top     []models.LeaderboardEntry `json:"top"`
	Entries []models.LeaderboardEntry `json:"entries"`
}

type FriendsPanel struct {
	Playing int             `json:"playing"`
	Friends []models.Friend `json:"friends"`
}

// Compose reads every slice of app into one renderable snapshot. Wallet and
// friends panels are nil for anonymous users.
func Compose(app *services.App) ViewState {
	sess, _, loggedIn := app.Sessions.Current()

	v := ViewState{
		Session: SessionPanel{
			State:  app.Sessions.State(),
			Prompt: app.Sessions.Prompt(),
		},
		Lobby: LobbyPanel{
			WagerOptions: models.WagerOptions,
			Selected:     app.Lobby.Wager(),
			Joining:      app.Lobby.Joining(),
			Membership:   app.Lobby.Membership(),
		},
		Leaderboard: LeaderboardPanel{
			Period:  app.Board.Period(),
			Periods: models.Periods,
			Top:     app.Board.Top(topPlayers),
			Entries: app.Board.Entries(),
		},
		Stats: app.Board.Stats(),
	}
	v.Lobby.CanJoin = v.Lobby.Selected != 0 && !v.Lobby.Joining && !v.Lobby.Membership.Terminal()

	if loggedIn {
		v.Session.User = &sess
		v.Wallet = &WalletPanel{
			Loading: app.Wallet.Loading(),
			Wallet:  app.Wallet.Wallet().View(),
		}
		v.Friends = &FriendsPanel{
			Playing: app.Friends.PlayingCount(),
			Friends: app.Friends.Friends(),
		}
	}

	return v
}
