package derive

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"vtokenScope/internal/memo"
	"vtokenScope/internal/model"
	"vtokenScope/internal/stream"
)

// ConvertPriceOf returns token_pool / vtoken_pool, or 0 for an empty vtoken
// pool. Both amounts are narrowed to float64 before dividing.
func ConvertPriceOf(pool model.PoolState) float64 {
	if pool.VtokenPool == nil || pool.VtokenPool.Sign() == 0 {
		return 0
	}
	return toFloat(pool.TokenPool) / toFloat(pool.VtokenPool)
}

func toFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

// ConvertPrice streams the conversion price of token.
func (a *API) ConvertPrice(token model.Token, at model.At) stream.Observable[float64] {
	key := memo.Key{Fn: "convertPrice", Args: poolKey{Token: token, At: at}}
	return memo.Get(a.table, key, func() stream.Observable[float64] {
		return stream.Map(a.PoolInfo(token, at), func(pool model.PoolState) (float64, error) {
			return ConvertPriceOf(pool), nil
		})
	})
}

// AllConvertPrice streams the live price of every token, in the order given.
func (a *API) AllConvertPrice(tokens []model.Token) stream.Observable[[]float64] {
	tokens = a.tokensOr(tokens)
	key := memo.Key{Fn: "allConvertPrice", Args: model.TokensKey(tokens)}
	return memo.Get(a.table, key, func() stream.Observable[[]float64] {
		return fanOut(tokens, func(token model.Token) stream.Observable[float64] {
			return a.ConvertPrice(token, model.Live())
		})
	})
}

type batchKey struct {
	Token  model.Token
	Hashes stream.Observable[[]common.Hash]
}

// BatchConvertPrice emits, for each hash list of hashes, the price of token at
// every listed block in list order. Lists are answered one after another in
// arrival order; a list's blocks are read once the previous list resolved.
func (a *API) BatchConvertPrice(token model.Token, hashes stream.Observable[[]common.Hash]) stream.Observable[[]float64] {
	key := memo.Key{Fn: "batchConvertPrice", Args: batchKey{Token: token, Hashes: hashes}}
	return memo.Get(a.table, key, func() stream.Observable[[]float64] {
		return stream.ConcatMap(hashes, func(list []common.Hash) stream.Observable[[]float64] {
			prices := make([]stream.Observable[float64], len(list))
			for i, hash := range list {
				prices[i] = a.ConvertPrice(token, model.AtBlock(hash))
			}
			return stream.CombineLatest(prices)
		})
	})
}
