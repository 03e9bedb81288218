// Package worker runs background maintenance on a cron schedule.
package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Reconcile is one pass over payments whose confirmation may have been lost.
type Reconcile func(ctx context.Context) (int, error)

// Reconciler triggers payment reconciliation on a schedule. Overlapping runs are skipped.
type Reconciler struct {
	cron    *cron.Cron
	run     Reconcile
	timeout time.Duration
	logger  *zap.Logger
}

// NewReconciler registers run under spec (standard five-field cron syntax or a descriptor such as "@every 5m").
func NewReconciler(spec string, run Reconcile, timeout time.Duration, logger *zap.Logger) (*Reconciler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 4 * time.Minute
	}
	r := &Reconciler{run: run, timeout: timeout, logger: logger}
	r.cron = cron.New(cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger})))
	if _, err := r.cron.AddFunc(spec, r.tick); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reconciler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	confirmed, err := r.run(ctx)
	if err != nil {
		r.logger.Error("payment reconciliation failed", zap.Error(err))
		return
	}
	r.logger.Debug("payment reconciliation finished", zap.Int("confirmed", confirmed))
}

// Start begins scheduling in the background.
func (r *Reconciler) Start() { r.cron.Start() }

// Stop halts scheduling and waits for a running pass to return.
func (r *Reconciler) Stop() {
	<-r.cron.Stop().Done()
}

type cronLogger struct{ l *zap.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
