package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/penflowhq/penflow/internal/collab"
	"github.com/penflowhq/penflow/pkg/logger"
	"github.com/penflowhq/penflow/pkg/metrics"
)

const defaultInterval = 30 * time.Second

// Source yields the live sessions worth persisting.
type Source interface {
	ActiveDocuments() []collab.SessionSnapshot
}

// Sink receives document checkpoints.
type Sink interface {
	Checkpoint(ctx context.Context, id, content string, version int) error
}

// Checkpointer periodically flushes every live session to the sink so a
// process restart loses at most one interval of edits.
type Checkpointer struct {
	source   Source
	sink     Sink
	interval time.Duration
	cron     *cron.Cron
	log      *zap.Logger
}

// New builds a checkpointer over a session source and a persistence sink.
func New(source Source, sink Sink, interval time.Duration) (*Checkpointer, error) {
	if source == nil {
		return nil, errors.New("checkpoint: nil source")
	}
	if sink == nil {
		return nil, errors.New("checkpoint: nil sink")
	}
	if interval <= 0 {
		interval = defaultInterval
	}

	return &Checkpointer{
		source:   source,
		sink:     sink,
		interval: interval,
		log:      logger.WithModule("checkpoint"),
	}, nil
}

// Start schedules the periodic flush. Stop must be called on shutdown.
func (c *Checkpointer) Start() error {
	if c.cron != nil {
		return errors.New("checkpoint: already started")
	}

	c.cron = cron.New()
	spec := fmt.Sprintf("@every %s", c.interval)
	if _, err := c.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.interval)
		defer cancel()
		if err := c.RunOnce(ctx); err != nil {
			c.log.Warn("checkpoint sweep incomplete", zap.Error(err))
		}
	}); err != nil {
		c.cron = nil
		return fmt.Errorf("checkpoint: schedule: %w", err)
	}

	c.cron.Start()
	c.log.Info("checkpointer started", zap.Duration("interval", c.interval))
	return nil
}

// Stop halts the schedule, waits for a running sweep, and performs a final
// flush so nothing newer than the last tick is lost.
func (c *Checkpointer) Stop(ctx context.Context) error {
	if c.cron != nil {
		<-c.cron.Stop().Done()
		c.cron = nil
	}
	return c.RunOnce(ctx)
}

// RunOnce flushes every live session. Individual failures are aggregated so
// one bad document does not shadow the rest of the sweep.
func (c *Checkpointer) RunOnce(ctx context.Context) error {
	var errs error
	for _, snap := range c.source.ActiveDocuments() {
		if err := c.sink.Checkpoint(ctx, snap.DocID, snap.Content, snap.Version); err != nil {
			metrics.CheckpointFailures.Inc()
			errs = multierr.Append(errs, fmt.Errorf("document %s: %w", snap.DocID, err))
		}
	}
	return errs
}
