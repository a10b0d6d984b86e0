package chain

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"vtokenScope/internal/model"
	"vtokenScope/internal/stream"
)

// fakeNode answers JSON-RPC calls from handlers keyed by method name.
type fakeNode struct {
	mu       sync.Mutex
	handlers map[string]func(args []interface{}) (interface{}, error)
	calls    map[string]int
}

func newFakeNode() *fakeNode {
	return &fakeNode{
		handlers: make(map[string]func([]interface{}) (interface{}, error)),
		calls:    make(map[string]int),
	}
}

func (f *fakeNode) handle(method string, fn func(args []interface{}) (interface{}, error)) {
	f.mu.Lock()
	f.handlers[method] = fn
	f.mu.Unlock()
}

func (f *fakeNode) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeNode) CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	f.mu.Lock()
	f.calls[method]++
	fn, ok := f.handlers[method]
	f.mu.Unlock()
	if !ok {
		return fmt.Errorf("unexpected method %s", method)
	}
	value, err := fn(args)
	if err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, result)
}

func poolValue(cur, pending, token, vtoken int64) []byte {
	data, err := codec.Encode(poolRecord{
		CurrentReward: types.NewU128(*big.NewInt(cur)),
		PendingReward: types.NewU128(*big.NewInt(pending)),
		TokenPool:     types.NewU128(*big.NewInt(token)),
		VtokenPool:    types.NewU128(*big.NewInt(vtoken)),
	})
	if err != nil {
		panic(err)
	}
	return data
}

func TestPoolValueLayout(t *testing.T) {
	data := poolValue(1, 0, 0, 2)
	if len(data) != poolValueSize {
		t.Fatalf("unexpected size %d", len(data))
	}
	if data[0] != 1 || data[48] != 2 {
		t.Fatalf("expected little-endian fields in declaration order: %x", data)
	}
}

func TestStorageKeyLayout(t *testing.T) {
	key, err := StorageKey("System", "Account", "vKSM")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(key) != 32+16+1 {
		t.Fatalf("unexpected key length %d", len(key))
	}
	if hex.EncodeToString(key[:32]) != "26aa394eea5630e07c48ae0c9558cef7b99d880ec681799c0cf30e8886371da9" {
		t.Fatalf("unexpected prefix %x", key[:32])
	}
	if key[len(key)-1] != 5 {
		t.Fatalf("expected token index 5 at the end, got %d", key[len(key)-1])
	}

	other, err := StorageKey("System", "Account", "vDOT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bytes.Equal(key[32:48], other[32:48]) {
		t.Fatalf("expected distinct hashes per token")
	}

	if _, err := StorageKey("System", "Account", "BTC"); !errors.Is(err, model.ErrUnknownToken) {
		t.Fatalf("expected unknown token error, got %v", err)
	}
}

func TestDecodePool(t *testing.T) {
	raw, err := DecodePool(poolValue(1, 2, 1000, 100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := model.RawPool{CurrentReward: "1", PendingReward: "2", TokenPool: "1000", VtokenPool: "100"}
	if !reflect.DeepEqual(raw, want) {
		t.Fatalf("decode mismatch: %+v", raw)
	}

	empty, err := DecodePool(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if empty.TokenPool != "0" || empty.VtokenPool != "0" {
		t.Fatalf("expected zero pool, got %+v", empty)
	}

	if _, err := DecodePool([]byte{1, 2, 3}); !errors.Is(err, ErrMalformedStorage) {
		t.Fatalf("expected malformed storage error, got %v", err)
	}
}

func TestDecodePoolFullWidth(t *testing.T) {
	data := poolValue(0, 0, 0, 0)
	for i := 32; i < 48; i++ {
		data[i] = 0xff
	}
	raw, err := DecodePool(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	if raw.TokenPool != max.String() {
		t.Fatalf("expected u128 max, got %s", raw.TokenPool)
	}
}

func TestParseHashes(t *testing.T) {
	h := common.HexToHash("0x01")
	hashes, err := ParseHashes([]string{" " + h.Hex() + " ", ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hashes) != 1 || hashes[0] != h {
		t.Fatalf("unexpected hashes: %v", hashes)
	}
	if _, err := ParseHashes([]string{"0x1234"}); err == nil {
		t.Fatalf("expected length error")
	}
	if _, err := ParseHashes([]string{"zz"}); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestBlockHashCached(t *testing.T) {
	node := newFakeNode()
	want := common.HexToHash("0xabc")
	node.handle("chain_getBlockHash", func([]interface{}) (interface{}, error) { return want, nil })
	c := newClient(node, Options{}, nil)

	for i := 0; i < 3; i++ {
		got, err := c.BlockHash(context.Background(), 7)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Fatalf("hash mismatch: %s", got.Hex())
		}
	}
	if node.count("chain_getBlockHash") != 1 {
		t.Fatalf("expected one rpc call, got %d", node.count("chain_getBlockHash"))
	}
}

func TestStorageMissing(t *testing.T) {
	node := newFakeNode()
	node.handle("state_getStorage", func([]interface{}) (interface{}, error) { return nil, nil })
	c := newClient(node, Options{}, nil)

	data, ok, err := c.Storage(context.Background(), []byte{1}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok || data != nil {
		t.Fatalf("expected missing value, got %x", data)
	}
}

func TestPoolPinnedEmitsOnceAndCompletes(t *testing.T) {
	node := newFakeNode()
	block := common.HexToHash("0x99")
	node.handle("state_getStorage", func(args []interface{}) (interface{}, error) {
		if len(args) != 2 || args[1] != block {
			return nil, fmt.Errorf("expected pinned read, got %v", args)
		}
		return hexutil.Bytes(poolValue(0, 0, 500, 50)), nil
	})
	c := newClient(node, Options{}, nil)

	values := make(chan model.RawPool, 4)
	done := make(chan struct{})
	c.Pool("vDOT", model.AtBlock(block)).Subscribe(stream.Observer[model.RawPool]{
		Next:     func(v model.RawPool) { values <- v },
		Error:    func(err error) { t.Errorf("unexpected error: %v", err) },
		Complete: func() { close(done) },
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for completion")
	}
	if len(values) != 1 {
		t.Fatalf("expected one emission, got %d", len(values))
	}
	if v := <-values; v.TokenPool != "500" || v.VtokenPool != "50" {
		t.Fatalf("unexpected pool: %+v", v)
	}
}

func TestPoolLiveReadsFinalizedHead(t *testing.T) {
	node := newFakeNode()
	head := common.HexToHash("0x42")
	node.handle("chain_getFinalizedHead", func([]interface{}) (interface{}, error) { return head, nil })
	node.handle("state_getStorage", func(args []interface{}) (interface{}, error) {
		if len(args) != 2 || args[1] != head {
			return nil, fmt.Errorf("expected read at head, got %v", args)
		}
		return hexutil.Bytes(poolValue(0, 0, 10, 1)), nil
	})
	c := newClient(node, Options{PollInterval: time.Millisecond}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	raw, err := stream.FirstValue(ctx, c.Pool("vKSM", model.Live()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw.TokenPool != "10" || raw.VtokenPool != "1" {
		t.Fatalf("unexpected pool: %+v", raw)
	}
}

func TestPoolLiveErrorTerminates(t *testing.T) {
	node := newFakeNode()
	node.handle("chain_getFinalizedHead", func([]interface{}) (interface{}, error) { return nil, nodeError{} })
	c := newClient(node, Options{PollInterval: time.Millisecond}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := stream.FirstValue(ctx, c.Pool("vKSM", model.Live()))
	var rpcErr nodeError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected node error, got %v", err)
	}
}

func TestPeriodResolver(t *testing.T) {
	node := newFakeNode()
	head := common.HexToHash("0x42")
	target := common.HexToHash("0x07")
	node.handle("chain_getFinalizedHead", func([]interface{}) (interface{}, error) { return head, nil })
	node.handle("chain_getHeader", func([]interface{}) (interface{}, error) {
		return map[string]interface{}{"parentHash": common.Hash{}, "number": hexutil.Uint64(1000)}, nil
	})
	var requested uint64
	node.handle("chain_getBlockHash", func(args []interface{}) (interface{}, error) {
		requested = args[0].(uint64)
		return target, nil
	})
	c := newClient(node, Options{PollInterval: time.Millisecond}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, err := stream.FirstValue(ctx, NewPeriodResolver(c, 100).DesignatedHash())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != target {
		t.Fatalf("hash mismatch: %s", got.Hex())
	}
	if requested != 900 {
		t.Fatalf("expected block 900, got %d", requested)
	}
}
