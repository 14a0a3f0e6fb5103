// Package system holds the framework's built-in subsystems.
package system

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/framecore/internal/core/event"
	"github.com/l1jgo/framecore/internal/core/phase"
	"github.com/l1jgo/framecore/internal/persist"
)

// FrameWriter persists journal batches and must not retain the slice.
// *persist.JournalRepo implements it.
type FrameWriter interface {
	WriteFrames(ctx context.Context, samples []persist.FrameSample) error
}

// Stats is what the journal samples each frame. *system.Scheduler implements it.
type Stats interface {
	Faults() uint64
	Len() int
}

const writeTimeout = 5 * time.Second

// JournalSystem records one sample per completed frame and writes them in
// batches. A failed write keeps the batch and is retried only after another
// batch worth of frames has been recorded. At most four batches are held,
// oldest dropped first.
type JournalSystem struct {
	hub    *event.Hub
	writer FrameWriter
	stats  Stats
	log    *zap.Logger
	batch  int
	now    func() time.Time

	sub     event.ListenerID
	pending []persist.FrameSample
	written uint64
	dropped uint64
	failing bool
	fresh   int // frames recorded since the last failed write
}

func NewJournalSystem(hub *event.Hub, writer FrameWriter, stats Stats, log *zap.Logger, batch int) *JournalSystem {
	if batch <= 0 {
		batch = 1
	}
	return &JournalSystem{
		hub:    hub,
		writer: writer,
		stats:  stats,
		log:    log,
		batch:  batch,
		now:    time.Now,
	}
}

func (s *JournalSystem) Name() string       { return "frame-journal" }
func (s *JournalSystem) Phase() phase.Phase { return phase.FrameAdvance }
func (s *JournalSystem) Priority() int      { return 1000 }

func (s *JournalSystem) Initialize() {
	s.sub = event.Subscribe(s.hub, s.record)
}

func (s *JournalSystem) record(ev event.FrameAdvanced) {
	if s.failing {
		s.fresh++
	}
	s.pending = append(s.pending, persist.FrameSample{
		Frame:      ev.Frame,
		Delta:      ev.Delta,
		Faults:     s.stats.Faults(),
		Systems:    s.stats.Len(),
		RecordedAt: s.now(),
	})
	if limit := 4 * s.batch; len(s.pending) > limit {
		over := len(s.pending) - limit
		s.pending = append(s.pending[:0], s.pending[over:]...)
		s.dropped += uint64(over)
	}
}

// HasWork reports whether a full batch is waiting. After a failed write it
// waits for a full batch of new frames instead.
func (s *JournalSystem) HasWork() bool {
	if s.failing {
		return s.fresh >= s.batch
	}
	return len(s.pending) >= s.batch
}

func (s *JournalSystem) ProcessWork(_ time.Duration) { s.flush() }

// Shutdown stops recording and writes whatever is left.
func (s *JournalSystem) Shutdown() {
	s.hub.Unsubscribe(s.sub)
	s.flush()
	s.log.Info("frame journal closed",
		zap.Uint64("written", s.written),
		zap.Uint64("dropped", s.dropped),
		zap.Int("unwritten", len(s.pending)))
}

func (s *JournalSystem) flush() {
	if len(s.pending) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := s.writer.WriteFrames(ctx, s.pending); err != nil {
		s.failing, s.fresh = true, 0
		s.log.Error("frame journal write failed",
			zap.Int("samples", len(s.pending)), zap.Error(err))
		return
	}
	s.failing, s.fresh = false, 0
	s.written += uint64(len(s.pending))
	s.pending = s.pending[:0]
}

// Pending returns the number of samples not yet written.
func (s *JournalSystem) Pending() int { return len(s.pending) }

// Dropped returns how many samples were discarded after failed writes.
func (s *JournalSystem) Dropped() uint64 { return s.dropped }
