package model

// Snapshot kinds.
const (
	KindPrice = "price"
	KindRate  = "rate"
)

// Snapshot is one derived value observed for a token, as written by sinks.
type Snapshot struct {
	Instance   string  `json:"instance"`
	Kind       string  `json:"kind"`
	Token      Token   `json:"token"`
	Value      float64 `json:"value"`
	ObservedAt string  `json:"observed_at"`
}
