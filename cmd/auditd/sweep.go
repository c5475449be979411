package main

import (
	"context"
	"time"

	"github.com/platinummonkey/auditable/pkg/audit"
	"github.com/platinummonkey/auditable/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// sweepJob runs the retention sweep as a cron job
type sweepJob struct {
	sweeper *audit.Sweeper
	runs    *prometheus.CounterVec
	otel    *observability.SweepMetrics
	log     logrus.FieldLogger
	timeout time.Duration
}

// Run implements cron.Job
func (j *sweepJob) Run() {
	defer observability.RecoverPanic(j.log, "retention sweep")

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	_, _ = j.run(ctx)
}

func (j *sweepJob) run(ctx context.Context) (*audit.SweepResult, error) {
	start := time.Now()
	result, err := j.sweeper.Sweep(ctx)
	elapsed := time.Since(start)

	var removed map[string]int
	if result != nil {
		removed = result.Removed
	}
	j.otel.RecordSweep(ctx, removed, elapsed, err)

	if err != nil {
		j.runs.WithLabelValues("error").Inc()
		j.log.WithError(err).Error("retention sweep failed")
		return nil, err
	}

	j.runs.WithLabelValues("success").Inc()
	j.log.WithField("duration", elapsed.String()).Debug("retention sweep run finished")
	return result, nil
}
