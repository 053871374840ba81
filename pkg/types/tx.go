package types

// SwapState is the lifecycle state of a submitted swap
type SwapState string

const (
	StatusProcessing SwapState = "Processing"
	StatusSuccess    SwapState = "Success"
	StatusFailed     SwapState = "Failed"
	StatusRefunded   SwapState = "Refunded"
)

// IsTerminal reports whether no further transitions are expected
func (s SwapState) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusRefunded
}

// SwapStatus is one observation of a swap's progress
type SwapStatus struct {
	TxHash string    `json:"txHash"` // destination chain hash when known
	Status SwapState `json:"status"`
}

// TxResult records a submitted swap. It is created once at submission and
// later enriched with TargetTxHash and Status by status polling.
type TxResult struct {
	ID           string   `json:"id"`
	SourceTxHash string   `json:"sourceTxHash"`
	AdapterName  string   `json:"adapterName"`
	SourceChain  ChainID  `json:"sourceChain"`
	TargetChain  ChainID  `json:"targetChain"`
	InputAmount  string   `json:"inputAmount"`
	OutputAmount string   `json:"outputAmount"`
	SourceToken  TokenRef `json:"sourceToken"`
	TargetToken  TokenRef `json:"targetToken"`
	TimestampMs  int64    `json:"timestampMs"`

	// Enrichment
	InputUSD           float64           `json:"inputUsd"`
	OutputUSD          float64           `json:"outputUsd"`
	PlatformFeePercent float64           `json:"platformFeePercent"`
	TargetTxHash       string            `json:"targetTxHash,omitempty"`
	Status             SwapState         `json:"status"`
	Meta               map[string]string `json:"meta,omitempty"`
}

// Apply merges a status observation into the record
func (t *TxResult) Apply(status SwapStatus) {
	if status.TxHash != "" {
		t.TargetTxHash = status.TxHash
	}
	if status.Status != "" {
		t.Status = status.Status
	}
}
