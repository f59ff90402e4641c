package types

// Event represents a typed event emitted during state transitions.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Receipt records the outcome of a committed transaction.
type Receipt struct {
	Sequence  uint64   `json:"sequence"`
	TxHash    string   `json:"txHash"`
	Signer    string   `json:"signer"`
	Timestamp int64    `json:"timestamp"`
	Events    []*Event `json:"events"`
}
