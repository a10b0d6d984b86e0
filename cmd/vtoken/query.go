package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vtokenScope/internal/chain"
	"vtokenScope/internal/derive"
	"vtokenScope/internal/model"
	"vtokenScope/internal/stream"
)

type poolOutput struct {
	Token model.Token     `json:"token"`
	Pool  model.PoolState `json:"pool"`
	Price float64         `json:"price"`
}

func runPools(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cmd, nil)
	if err != nil {
		return err
	}
	defer a.close()

	pools, err := stream.FirstValue(ctx, a.api.AllVtokenConvertInfo(a.tokens))
	if err != nil {
		return fmt.Errorf("read pools: %w", err)
	}

	out := make([]poolOutput, len(pools))
	for i, pool := range pools {
		out[i] = poolOutput{Token: a.tokens[i], Pool: pool, Price: derive.ConvertPriceOf(pool)}
	}
	return printJSON(out)
}

func runPrice(cmd *cobra.Command, _ []string) error {
	token, err := tokenFlag(cmd)
	if err != nil {
		return err
	}
	at := model.Live()
	if raw, _ := cmd.Flags().GetString("at"); raw != "" {
		hashes, err := chain.ParseHashes([]string{raw})
		if err != nil {
			return err
		}
		at = model.AtBlock(hashes[0])
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cmd, nil)
	if err != nil {
		return err
	}
	defer a.close()

	price, err := stream.FirstValue(ctx, a.api.ConvertPrice(token, at))
	if err != nil {
		return fmt.Errorf("read price: %w", err)
	}
	a.logger.Debug("price", zap.String("token", token.String()), zap.Stringer("at", at), zap.Float64("price", price))
	return printJSON(map[string]any{"token": token, "at": at.String(), "price": price})
}

func runRate(cmd *cobra.Command, _ []string) error {
	token, err := tokenFlag(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cmd, nil)
	if err != nil {
		return err
	}
	defer a.close()

	rate, err := stream.FirstValue(ctx, a.api.AnnualizedRate(token))
	if err != nil {
		return fmt.Errorf("read annualized rate: %w", err)
	}
	return printJSON(map[string]any{"token": token, "annualized_rate": rate})
}

func runBatchPrice(cmd *cobra.Command, _ []string) error {
	token, err := tokenFlag(cmd)
	if err != nil {
		return err
	}
	rawHashes, _ := cmd.Flags().GetStringSlice("hashes")
	hashes, err := chain.ParseHashes(rawHashes)
	if err != nil {
		return err
	}
	if len(hashes) == 0 {
		return fmt.Errorf("hash list is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cmd, nil)
	if err != nil {
		return err
	}
	defer a.close()

	prices, err := stream.FirstValue(ctx, a.api.BatchConvertPrice(token, stream.Of(hashes)))
	if err != nil {
		return fmt.Errorf("read batch prices: %w", err)
	}

	type entry struct {
		Hash  common.Hash `json:"hash"`
		Price float64     `json:"price"`
	}
	out := make([]entry, len(prices))
	for i, price := range prices {
		out[i] = entry{Hash: hashes[i], Price: price}
	}
	return printJSON(out)
}

func tokenFlag(cmd *cobra.Command) (model.Token, error) {
	raw, _ := cmd.Flags().GetString("token")
	tokens, err := model.ParseTokens([]string{raw})
	if err != nil {
		return "", err
	}
	if len(tokens) == 0 {
		return "", fmt.Errorf("token is required")
	}
	return tokens[0], nil
}
