package detector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/phamdt203/csv-import-service/internal/domain"
)

// RecordSource is the read-only slice of the record store the detector scans.
type RecordSource interface {
	ChangedRecordIDsSince(ctx context.Context, since time.Time) ([]string, error)
}

// FanoutPublisher broadcasts a notification body to every instance.
type FanoutPublisher interface {
	PublishFanout(ctx context.Context, exchange string, body []byte) error
}

// Watermark stores the last successful scan time shared across the fleet.
type Watermark interface {
	Last(ctx context.Context) (time.Time, bool, error)
	Advance(ctx context.Context, t time.Time) error
}

// Config holds detector settings.
type Config struct {
	Interval      time.Duration
	WarmUp        time.Duration
	FanoutEnabled bool
	Exchange      string
	InstanceID    string
}

// Detector is the recurring change scan. Each cycle queries the record store
// for recent mutations and, when anything changed, broadcasts a notification
// to every instance. The detector never mutates records.
type Detector struct {
	logger    *slog.Logger
	records   RecordSource
	publisher FanoutPublisher
	watermark Watermark // nil when no shared store is configured
	config    *Config
	now       func() time.Time
}

// NewDetector creates a new Detector instance. watermark may be nil.
func NewDetector(logger *slog.Logger, records RecordSource, publisher FanoutPublisher, watermark Watermark, config *Config) *Detector {
	return &Detector{
		logger:    logger,
		records:   records,
		publisher: publisher,
		watermark: watermark,
		config:    config,
		now:       time.Now,
	}
}

// Run executes detection cycles on a fixed interval after an initial warm-up
// delay. A failing cycle is logged and the next one runs on schedule; only
// context cancellation stops the loop.
func (d *Detector) Run(ctx context.Context) error {
	d.logger.Info("Change detector starting",
		slog.Duration("warm_up", d.config.WarmUp),
		slog.Duration("interval", d.config.Interval),
		slog.Bool("fanout_enabled", d.config.FanoutEnabled),
	)

	warmUp := time.NewTimer(d.config.WarmUp)
	defer warmUp.Stop()

	select {
	case <-ctx.Done():
		return nil
	case <-warmUp.C:
	}

	ticker := time.NewTicker(d.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Change detector stopped - context canceled")
			return nil

		case <-ticker.C:
			if _, _, err := d.DetectAndPublish(ctx, time.Time{}); err != nil {
				d.logger.Error("Change detection cycle failed",
					slog.Any("error", err),
				)
			}
		}
	}
}

// DetectAndPublish runs one detection cycle. A zero windowStart means the
// window is derived: from the shared watermark when one is configured and
// readable, otherwise now minus the interval. An explicit windowStart is used
// verbatim. It returns the number of changed records and whether a
// notification was published.
func (d *Detector) DetectAndPublish(ctx context.Context, windowStart time.Time) (int, bool, error) {
	windowEnd := d.now()
	if windowStart.IsZero() {
		windowStart = d.resolveWindowStart(ctx, windowEnd)
	}

	ids, err := d.records.ChangedRecordIDsSince(ctx, windowStart)
	if err != nil {
		return 0, false, fmt.Errorf("failed to scan for changes: %w", err)
	}

	published := false
	if len(ids) > 0 && d.config.FanoutEnabled {
		notification := domain.ChangeNotification{
			Kind:         domain.ChangeKindRecords,
			RecordIDs:    ids,
			TotalChanges: len(ids),
			WindowStart:  windowStart,
			WindowEnd:    windowEnd,
			InstanceID:   d.config.InstanceID,
		}

		body, err := json.Marshal(notification)
		if err != nil {
			return len(ids), false, fmt.Errorf("failed to marshal notification: %w", err)
		}

		if err := d.publisher.PublishFanout(ctx, d.config.Exchange, body); err != nil {
			return len(ids), false, fmt.Errorf("failed to publish notification: %w", err)
		}
		published = true
	}

	d.logger.Info("Change detection cycle finished",
		slog.Int("changed_count", len(ids)),
		slog.Bool("published", published),
		slog.Time("window_start", windowStart),
		slog.Time("window_end", windowEnd),
	)

	if d.watermark != nil {
		if err := d.watermark.Advance(ctx, windowEnd); err != nil {
			d.logger.Warn("Failed to advance change watermark",
				slog.Any("error", err),
			)
		}
	}

	return len(ids), published, nil
}

// resolveWindowStart prefers the shared watermark; an unreadable or missing
// watermark degrades to a window of one interval.
func (d *Detector) resolveWindowStart(ctx context.Context, windowEnd time.Time) time.Time {
	if d.watermark != nil {
		last, ok, err := d.watermark.Last(ctx)
		if err != nil {
			d.logger.Warn("Failed to read change watermark, falling back to interval window",
				slog.Any("error", err),
			)
		} else if ok {
			return last
		}
	}
	return windowEnd.Add(-d.config.Interval)
}
