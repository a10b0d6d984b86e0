package model

import (
	"fmt"
	"math/big"
	"strings"
)

// RawPool is the conversion pool record as returned by the chain query client.
// Fields hold decimal or 0x-prefixed hex integers.
type RawPool struct {
	CurrentReward string `json:"current_reward"`
	PendingReward string `json:"pending_reward"`
	TokenPool     string `json:"token_pool"`
	VtokenPool    string `json:"vtoken_pool"`
}

// PoolState is the typed conversion pool state of one token at one block.
type PoolState struct {
	CurrentReward *big.Int `json:"current_reward"`
	PendingReward *big.Int `json:"pending_reward"`
	TokenPool     *big.Int `json:"token_pool"`
	VtokenPool    *big.Int `json:"vtoken_pool"`
}

// PoolStateFromRaw converts each raw field verbatim.
func PoolStateFromRaw(raw RawPool) (PoolState, error) {
	currentReward, err := parseAmount("current_reward", raw.CurrentReward)
	if err != nil {
		return PoolState{}, err
	}
	pendingReward, err := parseAmount("pending_reward", raw.PendingReward)
	if err != nil {
		return PoolState{}, err
	}
	tokenPool, err := parseAmount("token_pool", raw.TokenPool)
	if err != nil {
		return PoolState{}, err
	}
	vtokenPool, err := parseAmount("vtoken_pool", raw.VtokenPool)
	if err != nil {
		return PoolState{}, err
	}

	return PoolState{
		CurrentReward: currentReward,
		PendingReward: pendingReward,
		TokenPool:     tokenPool,
		VtokenPool:    vtokenPool,
	}, nil
}

func parseAmount(field, value string) (*big.Int, error) {
	value = strings.TrimSpace(value)
	base := 10
	digits := value
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		base = 16
		digits = value[2:]
	}
	parsed, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return nil, fmt.Errorf("parse %s: invalid integer %q", field, value)
	}
	if parsed.Sign() < 0 {
		return nil, fmt.Errorf("parse %s: negative amount %s", field, value)
	}
	return parsed, nil
}
