package services

import "time"

const (
	KeyInflight = "paperpayout:inflight:%s:%s"

	OpAuth     = "auth"
	OpJoin     = "lobby.join"
	OpWithdraw = "wallet.withdraw"

	DefaultInflightTTL = time.Minute
)
