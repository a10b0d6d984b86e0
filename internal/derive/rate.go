package derive

import (
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"vtokenScope/internal/memo"
	"vtokenScope/internal/model"
	"vtokenScope/internal/stream"
)

const (
	periodDays = 7
	yearDays   = 365
)

// AnnualizedRateOf extrapolates the weekly price change to a yearly rate.
// A zero historical price yields 0.
func AnnualizedRateOf(current, historical float64) float64 {
	if historical == 0 {
		return 0
	}
	return (current - historical) / historical / periodDays * yearDays
}

func (a *API) designatedHash() stream.Observable[common.Hash] {
	return memo.Get(a.table, memo.Key{Fn: "designatedHash"}, func() stream.Observable[common.Hash] {
		return logFailures(a.logger, "designated hash failed", a.resolver.DesignatedHash())
	})
}

// AnnualizedRate streams the annualized rate of token, comparing its live
// price with the price at the designated block. Every designated hash adds a
// historical lookup; earlier lookups are not cancelled.
func (a *API) AnnualizedRate(token model.Token) stream.Observable[float64] {
	key := memo.Key{Fn: "annualizedRate", Args: token}
	return memo.Get(a.table, key, func() stream.Observable[float64] {
		current := a.ConvertPrice(token, model.Live())
		historical := stream.MergeMap(a.designatedHash(), func(hash common.Hash) stream.Observable[float64] {
			a.logger.Debug("historical price lookup", zap.String("token", token.String()), zap.String("hash", hash.Hex()))
			return a.ConvertPrice(token, model.AtBlock(hash))
		})
		return stream.CombineLatest2(current, historical, AnnualizedRateOf)
	})
}

// AllAnnualizedRate streams the annualized rate of every token, in the order given.
func (a *API) AllAnnualizedRate(tokens []model.Token) stream.Observable[[]float64] {
	tokens = a.tokensOr(tokens)
	key := memo.Key{Fn: "allAnnualizedRate", Args: model.TokensKey(tokens)}
	return memo.Get(a.table, key, func() stream.Observable[[]float64] {
		return fanOut(tokens, a.AnnualizedRate)
	})
}
