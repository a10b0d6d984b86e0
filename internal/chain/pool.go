package chain

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"vtokenScope/internal/model"
	"vtokenScope/internal/stream"
)

// Pool queries the conversion pool of token. A live query emits whenever the
// finalized value changes; a pinned query emits once and completes.
func (c *Client) Pool(token model.Token, at model.At) stream.Observable[model.RawPool] {
	return stream.New(func(s stream.Sink[model.RawPool]) func() {
		key, err := StorageKey(c.opts.StoragePallet, c.opts.StorageItem, token)
		if err != nil {
			s.Error(err)
			return nil
		}

		ctx, cancel := context.WithCancel(context.Background())
		if hash, pinned := at.Block(); pinned {
			go c.readPoolAt(ctx, s, token, key, hash)
		} else {
			go c.watchPool(ctx, s, token, key)
		}
		return cancel
	})
}

func (c *Client) readPoolAt(ctx context.Context, s stream.Sink[model.RawPool], token model.Token, key []byte, hash common.Hash) {
	data, _, err := c.Storage(ctx, key, &hash)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		s.Error(fmt.Errorf("query pool %s at %s: %w", token, hash.Hex(), err))
		return
	}
	raw, err := DecodePool(data)
	if err != nil {
		s.Error(fmt.Errorf("decode pool %s: %w", token, err))
		return
	}
	s.Next(raw)
	s.Complete()
}

func (c *Client) watchPool(ctx context.Context, s stream.Sink[model.RawPool], token model.Token, key []byte) {
	var (
		last    []byte
		emitted bool
	)
	err := c.pollHeads(ctx, func(ctx context.Context, head common.Hash) error {
		data, _, err := c.Storage(ctx, key, &head)
		if err != nil {
			return fmt.Errorf("query pool %s: %w", token, err)
		}
		if emitted && bytes.Equal(data, last) {
			return nil
		}
		raw, err := DecodePool(data)
		if err != nil {
			return fmt.Errorf("decode pool %s: %w", token, err)
		}
		last, emitted = data, true
		c.logger.Debug("pool changed", zap.String("token", token.String()), zap.String("head", head.Hex()))
		s.Next(raw)
		return nil
	})
	if err != nil && ctx.Err() == nil {
		s.Error(err)
	}
}

// pollHeads calls fn with each new finalized head, checking every PollInterval
// until ctx is done or fn fails.
func (c *Client) pollHeads(ctx context.Context, fn func(context.Context, common.Hash) error) error {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	var (
		lastHead common.Hash
		seen     bool
	)
	for {
		head, err := c.FinalizedHead(ctx)
		if err != nil {
			return fmt.Errorf("finalized head: %w", err)
		}
		if !seen || head != lastHead {
			if err := fn(ctx, head); err != nil {
				return err
			}
			lastHead, seen = head, true
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
