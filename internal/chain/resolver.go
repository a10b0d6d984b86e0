package chain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"vtokenScope/internal/stream"
)

// DefaultPeriodBlocks is one week of 12 second blocks.
const DefaultPeriodBlocks = 7 * 24 * 60 * 60 / 12

// PeriodResolver resolves the hash of the finalized block one period behind
// the finalized head.
type PeriodResolver struct {
	client *Client
	period uint64
}

func NewPeriodResolver(client *Client, periodBlocks uint64) *PeriodResolver {
	if periodBlocks == 0 {
		periodBlocks = DefaultPeriodBlocks
	}
	return &PeriodResolver{client: client, period: periodBlocks}
}

// DesignatedHash emits the period-ago block hash and re-emits when it moves.
func (r *PeriodResolver) DesignatedHash() stream.Observable[common.Hash] {
	return stream.New(func(s stream.Sink[common.Hash]) func() {
		ctx, cancel := context.WithCancel(context.Background())
		go r.watch(ctx, s)
		return cancel
	})
}

func (r *PeriodResolver) watch(ctx context.Context, s stream.Sink[common.Hash]) {
	var (
		last    common.Hash
		emitted bool
	)
	err := r.client.pollHeads(ctx, func(ctx context.Context, head common.Hash) error {
		number, err := r.client.HeaderNumber(ctx, head)
		if err != nil {
			return fmt.Errorf("head number: %w", err)
		}
		var target uint64
		if number > r.period {
			target = number - r.period
		}
		hash, err := r.client.BlockHash(ctx, target)
		if err != nil {
			return fmt.Errorf("block hash %d: %w", target, err)
		}
		if emitted && hash == last {
			return nil
		}
		last, emitted = hash, true
		r.client.logger.Debug("designated block", zap.Uint64("head", number), zap.Uint64("target", target), zap.String("hash", hash.Hex()))
		s.Next(hash)
		return nil
	})
	if err != nil && ctx.Err() == nil {
		s.Error(err)
	}
}
