/*
Package monitor runs the detection engine over a frame source as a live
monitoring session: a single producer goroutine processes frames in order
while a consumer drains results through a small bounded queue.

The engine's recovery and confirmation windows count frames rather than
wall clock time, so the source is expected to deliver frames at a roughly
constant rate.  When the consumer lags, the oldest queued results are
dropped: losing a frame's result under load is acceptable, delivering a
stale decision is not.
*/
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	fallsense "github.com/sentinelcare/go-fallsense"
	"github.com/sentinelcare/go-fallsense/clip"
	"github.com/sentinelcare/go-fallsense/eventlog"
	"github.com/sentinelcare/go-fallsense/zone"
)

// now is swapped out in tests
var now = time.Now

// Update is one processed frame's outcome delivered to the consumer
type Update struct {
	// FrameIndex counts processed frames from the start of the session
	FrameIndex int
	// Result is the engine's decision for the frame
	Result fallsense.FrameResult
	// ClipPath is set on the frame where an evidence clip finished
	// encoding
	ClipPath string
}

// Session wires the detection pipeline, clip recorder, monitored zone and
// event log together over one frame source.  Create it with NewSession,
// call Run once, drain Updates concurrently.
type Session struct {
	cfg      Config
	pipeline *fallsense.Pipeline
	recorder *clip.Recorder
	store    *eventlog.Store
	zone     *zone.Zone
	metrics  *Metrics
	logger   *zap.Logger

	// updates is the bounded result queue
	updates chan Update
	// paused is checked before each frame, see Pause
	paused atomic.Bool
	// frameIndex counts processed frames
	frameIndex int
	// pendingEventID is the newest stored event still waiting for its
	// evidence clip
	pendingEventID int64
	// hasPendingEvent indicates pendingEventID is waiting
	hasPendingEvent bool
}

// SessionOpts carries the optional collaborators of a session.  Any field
// may be nil to disable that concern.
type SessionOpts struct {
	// Recorder captures evidence clips when raw frames are available
	Recorder *clip.Recorder
	// Store persists confirmed events
	Store *eventlog.Store
	// Zone restricts detection to a region of the view
	Zone *zone.Zone
	// Metrics receives session counters
	Metrics *Metrics
	// Logger defaults to a no-op logger
	Logger *zap.Logger
}

// NewSession returns a Session running the given scorer with the given
// configuration
func NewSession(cfg Config, scorer fallsense.Scorer, opts SessionOpts) *Session {

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Session{
		cfg:      cfg,
		recorder: opts.Recorder,
		store:    opts.Store,
		zone:     opts.Zone,
		metrics:  opts.Metrics,
		logger:   logger,
		updates:  make(chan Update, cfg.QueueSize),
	}

	// the recorder doubles as the pipeline's fall trigger so both
	// decision paths start a clip
	var trigger fallsense.FallTrigger
	if opts.Recorder != nil {
		trigger = opts.Recorder
	}

	s.pipeline = fallsense.NewPipeline(scorer, trigger, cfg.PipelineParams())

	return s
}

// Updates returns the bounded result queue.  It is closed when Run
// returns.
func (s *Session) Updates() <-chan Update {
	return s.updates
}

// Pause stops frame processing without tearing the session down, used
// while an external assessment step such as a voice check-in owns the
// subject's attention.  Frames arriving while paused are consumed from
// the source and discarded so a live source does not back up.
func (s *Session) Pause() {
	s.paused.Store(true)
}

// Resume restarts frame processing
func (s *Session) Resume() {
	s.paused.Store(false)
}

// Paused reports whether the session is paused
func (s *Session) Paused() bool {
	return s.paused.Load()
}

// Run processes frames from the source until it ends, the context is
// cancelled or the scorer fails.  It closes the Updates channel on return.
// Run must only be called once per session.
func (s *Session) Run(ctx context.Context, src Source) error {

	defer close(s.updates)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		sample, err := src.Next()

		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("frame source error: %w", err)
		}

		if s.paused.Load() {
			continue
		}

		if err := s.processSample(sample); err != nil {
			return err
		}
	}
}

// processSample runs one frame through the engine and its collaborators
func (s *Session) processSample(sample Sample) error {

	frame := sample.Keypoints

	if s.metrics != nil {
		s.metrics.framesTotal.Inc()
		if frame == nil {
			s.metrics.framesAbsent.Inc()
		}
	}

	// a subject outside the monitored zone is treated as no detection
	if s.zone != nil && frame != nil && !s.zone.Contains(frame) {
		frame = nil
		if s.metrics != nil {
			s.metrics.framesOutside.Inc()
		}
	}

	result, err := s.pipeline.Process(frame)

	if err != nil {
		// a scorer failure means a corrupt model, stop the session
		return fmt.Errorf("frame %d: %w", s.frameIndex, err)
	}

	clipPath := ""
	if s.recorder != nil && sample.HasImage {
		clipPath = s.recorder.AddFrame(sample.Image)
	}

	s.recordEvents(result, clipPath)

	s.publish(Update{
		FrameIndex: s.frameIndex,
		Result:     result,
		ClipPath:   clipPath,
	})

	s.frameIndex++

	return nil
}

// recordEvents persists confirmed events and ties finished clips back to
// the event they belong to
func (s *Session) recordEvents(result fallsense.FrameResult, clipPath string) {

	if s.metrics != nil {
		if result.RFStatus == fallsense.RFFall {
			s.metrics.fallsTotal.Inc()
		}
		switch result.NearFallStatus {
		case fallsense.NearFall:
			s.metrics.nearFallsTotal.Inc()
		case fallsense.Sitting:
			s.metrics.sittingTotal.Inc()
		}
		if clipPath != "" {
			s.metrics.clipsSaved.Inc()
		}
	}

	if result.RFStatus == fallsense.RFFall {
		s.logger.Warn("fall confirmed", zap.Int("frame", s.frameIndex))
		s.storeEvent(eventlog.KindFall, nil, clipPath)
	}

	if result.NearFallStatus == fallsense.NearFall {
		s.logger.Warn("near fall detected",
			zap.Int("frame", s.frameIndex),
			zap.Strings("rules", result.FiredRules))
		s.storeEvent(eventlog.KindNearFall, result.FiredRules, clipPath)
	}

	// a clip finishing later belongs to the most recent stored event
	if clipPath != "" && s.hasPendingEvent {
		if err := s.store.AttachClip(s.pendingEventID, clipPath); err != nil {
			s.logger.Error("error attaching clip to event", zap.Error(err))
		}
		s.hasPendingEvent = false
	}
}

// storeEvent inserts one event row, remembering it while its clip is
// still being captured
func (s *Session) storeEvent(kind string, rules []string, clipPath string) {

	if s.store == nil {
		return
	}

	id, err := s.store.Insert(eventlog.Event{
		Time:     now(),
		Kind:     kind,
		Rules:    rules,
		ClipPath: clipPath,
	})

	if err != nil {
		s.logger.Error("error storing event", zap.Error(err))
		return
	}

	if clipPath == "" && s.recorder != nil && s.recorder.Recording() {
		s.pendingEventID = id
		s.hasPendingEvent = true
	}
}

// publish enqueues an update, dropping the oldest queued update when the
// consumer has fallen behind
func (s *Session) publish(u Update) {

	for {
		select {
		case s.updates <- u:
			return
		default:
		}

		// queue full, evict the oldest and retry
		select {
		case <-s.updates:
			if s.metrics != nil {
				s.metrics.updatesDropped.Inc()
			}
		default:
		}
	}
}

// Reset clears all engine and recorder state and replaces the result
// queue so the session can be run again on a fresh stream.  Callers must
// fetch Updates again after a reset.  Not safe during an active Run.
func (s *Session) Reset() {
	s.pipeline.Reset()
	if s.recorder != nil {
		s.recorder.Reset()
	}
	s.frameIndex = 0
	s.hasPendingEvent = false
	s.paused.Store(false)
	s.updates = make(chan Update, s.cfg.QueueSize)
}

// Close releases the engine.  The event store is owned by the caller and
// stays open.
func (s *Session) Close() {
	s.pipeline.Close()
	if s.recorder != nil {
		s.recorder.Reset()
	}
}
