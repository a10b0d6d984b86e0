package chain

import (
	"errors"
	"fmt"

	gsrpchash "github.com/centrifuge/go-substrate-rpc-client/v4/hash"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/centrifuge/go-substrate-rpc-client/v4/xxhash"

	"vtokenScope/internal/model"
)

// ErrMalformedStorage is returned when a storage value has an unexpected layout.
var ErrMalformedStorage = errors.New("malformed storage value")

const poolValueSize = 4 * 16

// poolRecord is the SCALE layout of a conversion pool value.
type poolRecord struct {
	CurrentReward types.U128
	PendingReward types.U128
	TokenPool     types.U128
	VtokenPool    types.U128
}

// StorageKey builds the key of a map entry hashed with blake2_128_concat and
// keyed by the SCALE-encoded token enum.
func StorageKey(pallet, item string, token model.Token) ([]byte, error) {
	idx, err := token.Index()
	if err != nil {
		return nil, err
	}
	arg, err := codec.Encode(types.NewU8(idx))
	if err != nil {
		return nil, fmt.Errorf("encode token %s: %w", token, err)
	}

	hasher, err := gsrpchash.NewBlake2b128Concat(nil)
	if err != nil {
		return nil, fmt.Errorf("blake2b: %w", err)
	}
	if _, err := hasher.Write(arg); err != nil {
		return nil, fmt.Errorf("hash token %s: %w", token, err)
	}

	key := append(xxhash.New128([]byte(pallet)).Sum(nil), xxhash.New128([]byte(item)).Sum(nil)...)
	return append(key, hasher.Sum(nil)...), nil
}

// DecodePool decodes a SCALE pool record of four u128 values. Empty data is
// the storage default and decodes to zeros.
func DecodePool(data []byte) (model.RawPool, error) {
	if len(data) == 0 {
		return model.RawPool{CurrentReward: "0", PendingReward: "0", TokenPool: "0", VtokenPool: "0"}, nil
	}
	if len(data) != poolValueSize {
		return model.RawPool{}, fmt.Errorf("%w: pool value has %d bytes, want %d", ErrMalformedStorage, len(data), poolValueSize)
	}

	var rec poolRecord
	if err := codec.Decode(data, &rec); err != nil {
		return model.RawPool{}, fmt.Errorf("%w: %v", ErrMalformedStorage, err)
	}

	return model.RawPool{
		CurrentReward: rec.CurrentReward.Int.String(),
		PendingReward: rec.PendingReward.Int.String(),
		TokenPool:     rec.TokenPool.Int.String(),
		VtokenPool:    rec.VtokenPool.Int.String(),
	}, nil
}
