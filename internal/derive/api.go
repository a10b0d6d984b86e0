// Package derive turns chain pool queries into memoized streams of pool
// state, conversion prices and annualized rates.
package derive

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"vtokenScope/internal/memo"
	"vtokenScope/internal/model"
	"vtokenScope/internal/stream"
)

// PoolQuerier reads the conversion pool of a token, live or at a block.
type PoolQuerier interface {
	Pool(token model.Token, at model.At) stream.Observable[model.RawPool]
}

// HashResolver provides the hash of the block one conversion period ago.
type HashResolver interface {
	DesignatedHash() stream.Observable[common.Hash]
}

// Config identifies an API instance and its default token universe.
type Config struct {
	Instance string
	Tokens   []model.Token
}

// API exposes the derivations of one instance. Equal calls share one stream.
type API struct {
	instance string
	tokens   []model.Token
	querier  PoolQuerier
	resolver HashResolver
	table    *memo.Table
	logger   *zap.Logger
}

// New builds an API. metrics may be nil.
func New(cfg Config, querier PoolQuerier, resolver HashResolver, logger *zap.Logger, metrics *memo.Metrics) (*API, error) {
	if querier == nil {
		return nil, errors.New("pool querier is required")
	}
	if resolver == nil {
		return nil, errors.New("hash resolver is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Instance == "" {
		cfg.Instance = "default"
	}

	return &API{
		instance: cfg.Instance,
		tokens:   model.TokensOrDefault(cfg.Tokens),
		querier:  querier,
		resolver: resolver,
		table:    memo.NewTable(cfg.Instance, logger, metrics),
		logger:   logger.With(zap.String("instance", cfg.Instance)),
	}, nil
}

// Instance returns the instance identifier.
func (a *API) Instance() string {
	return a.instance
}

// Tokens returns the default token universe of the instance.
func (a *API) Tokens() []model.Token {
	return append([]model.Token(nil), a.tokens...)
}

func (a *API) tokensOr(tokens []model.Token) []model.Token {
	if tokens == nil {
		return a.tokens
	}
	return tokens
}

// fanOut combines one stream per token into a stream of lists in token order.
func fanOut[T any](tokens []model.Token, each func(model.Token) stream.Observable[T]) stream.Observable[[]T] {
	sources := make([]stream.Observable[T], len(tokens))
	for i, token := range tokens {
		sources[i] = each(token)
	}
	return stream.CombineLatest(sources)
}

// logFailures passes src through, logging its terminal error.
func logFailures[T any](logger *zap.Logger, msg string, src stream.Observable[T], fields ...zap.Field) stream.Observable[T] {
	return stream.New(func(s stream.Sink[T]) func() {
		return src.Subscribe(stream.Observer[T]{
			Next: s.Next,
			Error: func(err error) {
				logger.Warn(msg, append(fields[:len(fields):len(fields)], zap.Error(err))...)
				s.Error(err)
			},
			Complete: s.Complete,
		}).Unsubscribe
	})
}
