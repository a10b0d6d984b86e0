package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vtokenScope/internal/model"
	"vtokenScope/internal/sink"
	"vtokenScope/internal/stream"
)

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a, err := setup(ctx, cmd, reg)
	if err != nil {
		return err
	}
	defer a.close()

	out, err := newSinks(a)
	if err != nil {
		return err
	}
	defer out.Close()

	written := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vtoken_snapshots_written_total",
		Help: "Snapshots written to the configured sinks.",
	}, []string{"kind"})
	reg.MustRegister(written)

	if a.cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              a.cfg.MetricsAddr,
			Handler:           metricsHandler(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	batches := make(chan []model.Snapshot, 16)
	failures := make(chan error, 2)

	subscribe := func(kind string, src stream.Observable[[]float64]) stream.Subscription {
		return src.Subscribe(stream.Observer[[]float64]{
			Next: func(values []float64) {
				select {
				case batches <- buildSnapshots(a.cfg.Instance, kind, a.tokens, values, time.Now()):
				case <-ctx.Done():
				}
			},
			Error: func(err error) {
				failures <- fmt.Errorf("%s stream: %w", kind, err)
			},
		})
	}

	prices := subscribe(model.KindPrice, a.api.AllConvertPrice(a.tokens))
	defer prices.Unsubscribe()
	rates := subscribe(model.KindRate, a.api.AllAnnualizedRate(a.tokens))
	defer rates.Unsubscribe()

	a.logger.Info("watch start",
		zap.String("rpc", a.cfg.RPCURL),
		zap.String("instance", a.cfg.Instance),
		zap.Int("tokens", len(a.tokens)),
		zap.Uint64("period_blocks", a.cfg.PeriodBlocks),
		zap.String("out", a.cfg.Out),
		zap.Strings("kafka_brokers", a.cfg.KafkaBrokers),
		zap.String("metrics_addr", a.cfg.MetricsAddr),
	)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("watch stop")
			return nil
		case err := <-failures:
			return err
		case batch := <-batches:
			if err := out.Write(ctx, batch); err != nil {
				a.logger.Warn("write snapshots failed", zap.Error(err))
				continue
			}
			if len(batch) > 0 {
				written.WithLabelValues(batch[0].Kind).Add(float64(len(batch)))
			}
			a.logger.Debug("snapshots written", zap.Int("count", len(batch)))
		}
	}
}

func newSinks(a *app) (sink.Multi, error) {
	out := sink.Multi{sink.NewJSONLSink(a.cfg.Out)}
	if len(a.cfg.KafkaBrokers) > 0 {
		kafkaSink, err := sink.NewKafkaSink(a.cfg.KafkaBrokers, a.cfg.KafkaTopic)
		if err != nil {
			return nil, err
		}
		out = append(out, kafkaSink)
	}
	return out, nil
}

func metricsHandler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}

// buildSnapshots pairs each value with the token at the same position.
func buildSnapshots(instance, kind string, tokens []model.Token, values []float64, now time.Time) []model.Snapshot {
	n := len(values)
	if len(tokens) < n {
		n = len(tokens)
	}
	observedAt := now.UTC().Format(time.RFC3339)
	out := make([]model.Snapshot, n)
	for i := 0; i < n; i++ {
		out[i] = model.Snapshot{
			Instance:   instance,
			Kind:       kind,
			Token:      tokens[i],
			Value:      values[i],
			ObservedAt: observedAt,
		}
	}
	return out
}
