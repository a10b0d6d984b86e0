package derive

import (
	"go.uber.org/zap"

	"vtokenScope/internal/memo"
	"vtokenScope/internal/model"
	"vtokenScope/internal/stream"
)

type poolKey struct {
	Token model.Token
	At    model.At
}

// PoolInfo streams the pool state of token. A live query follows the chain;
// a pinned one emits once and completes.
func (a *API) PoolInfo(token model.Token, at model.At) stream.Observable[model.PoolState] {
	key := memo.Key{Fn: "poolInfo", Args: poolKey{Token: token, At: at}}
	return memo.Get(a.table, key, func() stream.Observable[model.PoolState] {
		raw := logFailures(a.logger, "pool query failed", a.querier.Pool(token, at),
			zap.String("token", token.String()), zap.Stringer("at", at))
		return stream.Map(raw, model.PoolStateFromRaw)
	})
}

// AllVtokenConvertInfo streams the live pool state of every token, in the
// order given. A nil list selects the instance token universe.
func (a *API) AllVtokenConvertInfo(tokens []model.Token) stream.Observable[[]model.PoolState] {
	tokens = a.tokensOr(tokens)
	key := memo.Key{Fn: "allVtokenConvertInfo", Args: model.TokensKey(tokens)}
	return memo.Get(a.table, key, func() stream.Observable[[]model.PoolState] {
		return fanOut(tokens, func(token model.Token) stream.Observable[model.PoolState] {
			return a.PoolInfo(token, model.Live())
		})
	})
}
