package models

type Wallet struct {
	Address    string  `json:"address"`
	BalanceUSD float64 `json:"balance_usd"`
	BalanceSOL float64 `json:"balance_sol"`
}

type WithdrawRequest struct {
	UserID    string  `json:"user_id"`
	ToAddress string  `json:"to_address"`
	AmountSOL float64 `json:"amount_sol"`
}

// WalletView is the display form of a wallet.
type WalletView struct {
	Address    string `json:"address"`
	BalanceUSD string `json:"balance_usd"`
	BalanceSOL string `json:"balance_sol"`
}

type DepositInfo struct {
	Address string `json:"address"`
	Message string `json:"message"`
}

func (w *Wallet) View() *WalletView {
	if w == nil {
		return nil
	}
	return &WalletView{
		Address:    w.Address,
		BalanceUSD: FormatUSD(w.BalanceUSD),
		BalanceSOL: FormatSOL(w.BalanceSOL),
	}
}
