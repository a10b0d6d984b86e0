package chain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// Options tune polling and retries of the chain client.
type Options struct {
	PollInterval  time.Duration
	MaxRetries    int
	RetryBackoff  time.Duration
	StoragePallet string
	StorageItem   string
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = 6 * time.Second
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 500 * time.Millisecond
	}
	if o.StoragePallet == "" {
		o.StoragePallet = "Convert"
	}
	if o.StorageItem == "" {
		o.StorageItem = "Pool"
	}
	return o
}

// caller is the subset of *rpc.Client used by Client.
type caller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// Client wraps a Substrate node JSON-RPC connection and provides helper methods.
type Client struct {
	rpcClient *rpc.Client
	call      caller
	opts      Options
	logger    *zap.Logger

	mu        sync.RWMutex
	hashCache map[uint64]common.Hash
}

// NewClient dials the node at rpcURL.
func NewClient(ctx context.Context, rpcURL string, opts Options, logger *zap.Logger) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	c := newClient(rpcClient, opts, logger)
	c.rpcClient = rpcClient
	return c, nil
}

func newClient(call caller, opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		call:      call,
		opts:      opts.withDefaults(),
		logger:    logger,
		hashCache: make(map[uint64]common.Hash),
	}
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

type header struct {
	ParentHash common.Hash    `json:"parentHash"`
	Number     hexutil.Uint64 `json:"number"`
}

// FinalizedHead returns the hash of the latest finalized block.
func (c *Client) FinalizedHead(ctx context.Context) (common.Hash, error) {
	var hash common.Hash
	err := c.callWithRetry(ctx, &hash, "chain_getFinalizedHead")
	return hash, err
}

// HeaderNumber returns the block number of the block with the given hash.
func (c *Client) HeaderNumber(ctx context.Context, hash common.Hash) (uint64, error) {
	var h *header
	if err := c.callWithRetry(ctx, &h, "chain_getHeader", hash); err != nil {
		return 0, err
	}
	if h == nil {
		return 0, fmt.Errorf("header %s not found", hash.Hex())
	}
	return uint64(h.Number), nil
}

// BlockHash returns the canonical hash of a block number, using an in-memory cache.
func (c *Client) BlockHash(ctx context.Context, number uint64) (common.Hash, error) {
	c.mu.RLock()
	hash, ok := c.hashCache[number]
	c.mu.RUnlock()
	if ok {
		return hash, nil
	}

	var result *common.Hash
	if err := c.callWithRetry(ctx, &result, "chain_getBlockHash", number); err != nil {
		return common.Hash{}, err
	}
	if result == nil {
		return common.Hash{}, fmt.Errorf("block %d not found", number)
	}

	hash = *result
	c.mu.Lock()
	c.hashCache[number] = hash
	c.mu.Unlock()

	return hash, nil
}

// Storage reads a raw storage value, at the given block or at the best block
// when at is nil. A missing value returns (nil, false, nil).
func (c *Client) Storage(ctx context.Context, key []byte, at *common.Hash) ([]byte, bool, error) {
	args := []interface{}{hexutil.Bytes(key)}
	if at != nil {
		args = append(args, *at)
	}

	var result *hexutil.Bytes
	if err := c.callWithRetry(ctx, &result, "state_getStorage", args...); err != nil {
		return nil, false, err
	}
	if result == nil {
		return nil, false, nil
	}
	return *result, true, nil
}

func (c *Client) callWithRetry(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	return withRetry(ctx, c.opts.MaxRetries, c.opts.RetryBackoff, func(ctx context.Context) error {
		err := c.call.CallContext(ctx, result, method, args...)
		if err != nil {
			c.logger.Warn("rpc call failed", zap.String("method", method), zap.Error(err))
		}
		return err
	})
}
