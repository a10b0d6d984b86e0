package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"vtokenScope/internal/chain"
	"vtokenScope/internal/config"
	"vtokenScope/internal/derive"
	"vtokenScope/internal/memo"
	"vtokenScope/internal/model"
)

func main() {
	root := &cobra.Command{
		Use:          "vtoken",
		Short:        "vToken conversion price and yield feed",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	poolsCmd := &cobra.Command{
		Use:   "pools",
		Short: "Print the conversion pool of every token",
		RunE:  runPools,
	}
	addCommonFlags(poolsCmd)
	poolsCmd.Flags().StringSlice("tokens", nil, "token symbols (comma-separated), defaults to every vToken")
	root.AddCommand(poolsCmd)

	priceCmd := &cobra.Command{
		Use:   "price",
		Short: "Print the conversion price of a token",
		RunE:  runPrice,
	}
	addCommonFlags(priceCmd)
	priceCmd.Flags().String("token", "", "token symbol")
	priceCmd.Flags().String("at", "", "block hash, defaults to the finalized head")
	root.AddCommand(priceCmd)

	rateCmd := &cobra.Command{
		Use:   "rate",
		Short: "Print the annualized rate of a token",
		RunE:  runRate,
	}
	addCommonFlags(rateCmd)
	rateCmd.Flags().String("token", "", "token symbol")
	rateCmd.Flags().Uint64("period-blocks", chain.DefaultPeriodBlocks, "blocks per conversion period")
	root.AddCommand(rateCmd)

	batchCmd := &cobra.Command{
		Use:   "batch-price",
		Short: "Print the conversion price of a token at several blocks",
		RunE:  runBatchPrice,
	}
	addCommonFlags(batchCmd)
	batchCmd.Flags().String("token", "", "token symbol")
	batchCmd.Flags().StringSlice("hashes", nil, "block hashes (comma-separated)")
	root.AddCommand(batchCmd)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream prices and annualized rates to the configured sinks",
		RunE:  runWatch,
	}
	addCommonFlags(watchCmd)
	watchCmd.Flags().StringSlice("tokens", nil, "token symbols (comma-separated), defaults to every vToken")
	watchCmd.Flags().Uint64("period-blocks", chain.DefaultPeriodBlocks, "blocks per conversion period")
	watchCmd.Flags().String("out", "./data/snapshots.jsonl", "output JSONL path")
	watchCmd.Flags().StringSlice("kafka-brokers", nil, "kafka broker addresses (comma-separated)")
	watchCmd.Flags().String("kafka-topic", "", "kafka topic for snapshots")
	watchCmd.Flags().String("metrics-addr", "", "listen address for /metrics, disabled when empty")
	root.AddCommand(watchCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "Substrate node RPC URL")
	cmd.Flags().String("instance", "default", "API instance identifier")
	cmd.Flags().Duration("poll-interval", 6*time.Second, "finalized head poll interval")
	cmd.Flags().String("storage-pallet", "Convert", "pallet holding the conversion pools")
	cmd.Flags().String("storage-item", "Pool", "storage item of the conversion pools")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

// app bundles the pieces every command needs.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	client *chain.Client
	api    *derive.API
	tokens []model.Token
}

func setup(ctx context.Context, cmd *cobra.Command, reg prometheus.Registerer) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}

	client, err := chain.NewClient(ctx, cfg.RPCURL, chain.Options{
		PollInterval:  cfg.PollInterval,
		MaxRetries:    cfg.MaxRetries,
		RetryBackoff:  cfg.RetryBackoff,
		StoragePallet: cfg.StoragePallet,
		StorageItem:   cfg.StorageItem,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}

	var metrics *memo.Metrics
	if reg != nil {
		metrics = memo.NewMetrics(reg)
	}

	resolver := chain.NewPeriodResolver(client, cfg.PeriodBlocks)
	api, err := derive.New(derive.Config{Instance: cfg.Instance, Tokens: cfg.Tokens}, client, resolver, logger, metrics)
	if err != nil {
		client.Close()
		return nil, err
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		client: client,
		api:    api,
		tokens: api.Tokens(),
	}, nil
}

func (a *app) close() {
	a.client.Close()
	_ = a.logger.Sync()
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
