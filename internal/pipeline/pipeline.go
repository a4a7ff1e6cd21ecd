package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/mute-zones-service/internal/domain"
	"github.com/couchcryptid/mute-zones-service/internal/observability"
	"github.com/couchcryptid/mute-zones-service/internal/ringer"
)

// BatchExtractor reads up to batchSize raw fixes from the fix source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawFix, error)
}

// ZoneSource supplies the current zone set. Implementations may cache; the
// tracker asks again for every fix and never keeps a copy.
type ZoneSource interface {
	Zones(ctx context.Context) ([]domain.Zone, error)
}

// DecisionSink records decisions for audit. It may be nil.
type DecisionSink interface {
	Publish(ctx context.Context, decisions []domain.Decision) error
}

// Tracker consumes location fixes and reconciles the ringer for each one.
type Tracker struct {
	extractor  BatchExtractor
	zones      ZoneSource
	controller *ringer.Controller
	serial     *Serial
	sink       DecisionSink
	logger     *slog.Logger
	metrics    *observability.Metrics
	ready      atomic.Bool
	batchSize  int

	// device is the only device whose fixes drive the controller.
	device string
}

// New creates a Tracker with the given stages and observability. Fixes from
// devices other than device are committed without being evaluated.
func New(e BatchExtractor, zones ZoneSource, controller *ringer.Controller, serial *Serial, sink DecisionSink, logger *slog.Logger, metrics *observability.Metrics, batchSize int, device string) *Tracker {
	return &Tracker{
		device:     device,
		extractor:  e,
		zones:      zones,
		controller: controller,
		serial:     serial,
		sink:       sink,
		logger:     logger,
		metrics:    metrics,
		batchSize:  batchSize,
	}
}

// CheckReadiness returns nil once the tracker has evaluated at least one fix,
// or an error describing why the service is not yet ready.
func (t *Tracker) CheckReadiness(_ context.Context) error {
	if !t.ready.Load() {
		return errors.New("tracker has not evaluated any fixes yet")
	}
	return nil
}

// Run executes the fix loop until the context is cancelled.
func (t *Tracker) Run(ctx context.Context) error {
	t.logger.Info("tracker started", "batch_size", t.batchSize, "device", t.device)
	t.metrics.TrackerRunning.Set(1)
	defer t.metrics.TrackerRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("tracker stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !t.processBatch(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processBatch runs one extract-evaluate-commit cycle. Returns false if the tracker should stop.
func (t *Tracker) processBatch(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	start := time.Now()

	rawBatch, err := t.extractor.ExtractBatch(ctx, t.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		t.logger.Error("extract batch failed", "error", err)
		return t.backoffOrStop(ctx, backoff, maxBackoff)
	}

	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	t.metrics.FixesConsumed.Add(float64(len(rawBatch)))
	t.metrics.BatchSize.Observe(float64(len(rawBatch)))
	*backoff = 200 * time.Millisecond

	decisions := make([]domain.Decision, 0, len(rawBatch))
	for _, raw := range rawBatch {
		d, ok := t.evaluate(ctx, raw)
		if ok {
			decisions = append(decisions, d)
		}
		if ctx.Err() != nil {
			return false
		}
	}

	t.publish(ctx, decisions)

	for _, raw := range rawBatch {
		t.commitOffset(ctx, raw)
	}

	if len(decisions) > 0 {
		t.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
		t.ready.Store(true)
	}
	return true
}

// evaluate decodes one fix, matches it against the current zones and
// reconciles the ringer. Returns false when the fix was skipped.
func (t *Tracker) evaluate(ctx context.Context, raw domain.RawFix) (domain.Decision, bool) {
	fix, err := domain.ParseFix(raw)
	if err != nil {
		t.logger.Warn("invalid fix, skipping message",
			"error", err,
			"topic", raw.Topic,
			"partition", raw.Partition,
			"offset", raw.Offset,
		)
		t.metrics.FixesRejected.Inc()
		return domain.Decision{}, false
	}
	if fix.Device != t.device {
		t.logger.Debug("fix from another device, skipping",
			"device", fix.Device,
			"offset", raw.Offset,
		)
		t.metrics.FixesIgnored.Inc()
		return domain.Decision{}, false
	}

	zones, err := t.zones.Zones(ctx)
	if err != nil {
		// The next fix retries the lookup; there is nothing to gain from
		// holding this one back.
		t.logger.Error("zone lookup failed, skipping fix", "error", err, "device", fix.Device)
		t.metrics.ZoneStoreErrors.Inc()
		return domain.Decision{}, false
	}
	t.metrics.ZonesLoaded.Set(float64(len(zones)))

	zone, matched, err := domain.Match(fix.Position, zones)
	if err != nil {
		t.metrics.FixesRejected.Inc()
		return domain.Decision{}, false
	}
	var zp *domain.Zone
	if matched {
		zp = &zone
		t.metrics.ZoneMatches.WithLabelValues(zone.Name).Inc()
	}

	out, err := t.serial.Do(ctx, func(ctx context.Context) domain.Outcome {
		perms := t.controller.Probe().Probe(ctx)
		return t.controller.Reconcile(ctx, zp, perms)
	})
	if err != nil {
		return domain.Decision{}, false
	}

	t.logger.Debug("fix evaluated",
		"device", fix.Device,
		"lat", fix.Position.Lat,
		"lon", fix.Position.Lon,
		"zone", out.Zone,
		"outcome", out.Kind.String(),
	)

	pos := fix.Position
	return domain.NewDecision(domain.SourceFix, fix.Device, &pos, out), true
}

func (t *Tracker) publish(ctx context.Context, decisions []domain.Decision) {
	if t.sink == nil || len(decisions) == 0 {
		return
	}
	if err := t.sink.Publish(ctx, decisions); err != nil {
		t.logger.Error("publish decisions failed", "error", err, "count", len(decisions))
		return
	}
	t.metrics.DecisionsPublished.Add(float64(len(decisions)))
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the tracker should stop.
func (t *Tracker) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (t *Tracker) commitOffset(ctx context.Context, raw domain.RawFix) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		t.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
