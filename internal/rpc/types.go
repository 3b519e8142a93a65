package rpc

// RPCError represents a JSON-RPC error response
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return e.Message
}

// ResponseContext is the slot context attached to most RPC results
type ResponseContext struct {
	Slot uint64 `json:"slot"`
}

// TokenAmount represents token balance or supply information
type TokenAmount struct {
	Amount         string   `json:"amount"`
	Decimals       int      `json:"decimals"`
	UIAmountString string   `json:"uiAmountString"`
	UIAmount       *float64 `json:"uiAmount"`
}

// TokenSupplyResult wraps the supply value with its context
type TokenSupplyResult struct {
	Context ResponseContext `json:"context"`
	Value   TokenAmount     `json:"value"`
}

// TokenSupplyResponse is the response from getTokenSupply
type TokenSupplyResponse struct {
	Result *TokenSupplyResult `json:"result"`
	Error  *RPCError          `json:"error"`
}

// BalanceResult is the lamport balance with its context
type BalanceResult struct {
	Context ResponseContext `json:"context"`
	Value   uint64          `json:"value"`
}

// BalanceResponse is the response from getBalance
type BalanceResponse struct {
	Result *BalanceResult `json:"result"`
	Error  *RPCError      `json:"error"`
}
