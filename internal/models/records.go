package models

// Action identifies the kind of portfolio action behind a trade record.
// The tag values are part of the ledger contract consumed by downstream
// tooling and must not change.
type Action string

const (
	ActionBuyOpen     Action = "BUY_OPEN"
	ActionBuyAdd      Action = "BUY_ADD"
	ActionBuyRollUp   Action = "BUY_ROLL_UP"
	ActionBuyRollOut  Action = "BUY_ROLL_OUT"
	ActionSellRollUp  Action = "SELL_ROLL_UP"
	ActionSellRollOut Action = "SELL_ROLL_OUT"
	ActionExpired     Action = "EXPIRED"
)

// IsBuy reports whether the action opens or adds contracts.
func (a Action) IsBuy() bool {
	return a == ActionBuyOpen || a == ActionBuyAdd || a == ActionBuyRollUp || a == ActionBuyRollOut
}

// TradeRecord is one row of the trade ledger, emitted once per buy, sell or
// expiry settlement. The *_after fields capture portfolio state immediately
// after the action, so the ledger is auditable without replaying the run.
type TradeRecord struct {
	Date              Date    `csv:"date"`
	Action            Action  `csv:"action"`
	Reason            string  `csv:"reason"`
	UnderlyingClose   float64 `csv:"underlying_close"`
	Sigma             float64 `csv:"sigma"`
	RiskFreeRate      float64 `csv:"r"`
	Contracts         int     `csv:"contracts"`
	Strike            float64 `csv:"strike"`
	DTE               int     `csv:"dte"`
	OptionPrice       float64 `csv:"option_price"`
	OptionDelta       float64 `csv:"option_delta"`
	CashFlow          float64 `csv:"cash_flow"`
	CashAfter         float64 `csv:"cash_after"`
	TotalValueAfter   float64 `csv:"total_value_after"`
	CashRatioAfter    float64 `csv:"cash_ratio_after"`
	NetCostBasisAfter float64 `csv:"net_cost_basis_after"`
}

// DailyRecord is one row of the daily ledger, emitted once per simulated
// day after all actions have settled. Benchmark fields stay nil until the
// strategy has entered.
type DailyRecord struct {
	Date            Date     `csv:"date"`
	UnderlyingClose float64  `csv:"underlying_close"`
	PortfolioValue  float64  `csv:"portfolio_value"`
	Cash            float64  `csv:"cash"`
	CashRatio       float64  `csv:"cash_ratio"`
	OptionsValue    float64  `csv:"options_value"`
	TotalContracts  int      `csv:"total_contracts"`
	NetCostBasis    float64  `csv:"net_cost_basis"`
	BenchmarkValue  *float64 `csv:"benchmark_value"`
	BenchmarkClose  *float64 `csv:"benchmark_close"`
}

// Event is one human-readable entry of the portfolio event log.
type Event struct {
	Date    Date
	Message string
	Value   float64
	Cash    float64
}
