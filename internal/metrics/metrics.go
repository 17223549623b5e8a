package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	thresholdCrossedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streak_threshold_crossed_total",
		Help: "Number of days credited toward a streak",
	})

	streakResetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streak_resets_total",
		Help: "Number of streak resets by cause",
	}, []string{"cause"})

	guardDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streak_guard_decisions_total",
		Help: "Guarded actions by kind and outcome",
	}, []string{"action", "outcome"})

	txRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streak_tx_retries_total",
		Help: "Transactions retried after a version conflict",
	})

	freezeSweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "streak_freeze_sweep_duration_seconds",
		Help:    "Duration of a full freeze sweep",
		Buckets: prometheus.DefBuckets,
	})

	frozenUsersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streak_frozen_users",
		Help: "Users with a frozen streak after the last sweep",
	})
)

func ThresholdCrossed() { thresholdCrossedTotal.Inc() }

// StreakReset counts a reset; cause is "rollover", "deferred" or "downgrade".
func StreakReset(cause string) { streakResetsTotal.WithLabelValues(cause).Inc() }

func GuardDecision(action, outcome string) {
	guardDecisionsTotal.WithLabelValues(action, outcome).Inc()
}

func TxRetried() { txRetriesTotal.Inc() }

// ObserveSweep records one freeze sweep.
func ObserveSweep(started time.Time, frozenUsers int) {
	freezeSweepDuration.Observe(time.Since(started).Seconds())
	frozenUsersGauge.Set(float64(frozenUsers))
}

// Serve exposes /metrics on addr until ctx is cancelled. An empty addr disables it.
func Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics server started", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
