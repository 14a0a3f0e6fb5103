package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// FrameSample is one row of the frame journal.
type FrameSample struct {
	Frame      uint64
	Delta      time.Duration
	Faults     uint64
	Systems    int
	RecordedAt time.Time
}

var journalColumns = []string{"frame", "delta_us", "faults", "systems", "recorded_at"}

type JournalRepo struct {
	db *DB
}

func NewJournalRepo(db *DB) *JournalRepo {
	return &JournalRepo{db: db}
}

// WriteFrames copies a batch of samples in a single transaction.
func (r *JournalRepo) WriteFrames(ctx context.Context, samples []FrameSample) error {
	if len(samples) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("journal begin: %w", err)
	}
	defer tx.Rollback(ctx)

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"frame_journal"}, journalColumns,
		pgx.CopyFromSlice(len(samples), func(i int) ([]any, error) {
			return sampleRow(samples[i]), nil
		}))
	if err != nil {
		return fmt.Errorf("journal copy: %w", err)
	}
	if int(n) != len(samples) {
		return fmt.Errorf("journal copy: wrote %d of %d rows", n, len(samples))
	}
	return tx.Commit(ctx)
}

// Latest returns up to limit samples, newest first.
func (r *JournalRepo) Latest(ctx context.Context, limit int) ([]FrameSample, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT frame, delta_us, faults, systems, recorded_at
		 FROM frame_journal
		 ORDER BY id DESC
		 LIMIT $1`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []FrameSample
	for rows.Next() {
		var (
			frame, deltaUS, faults int64
			systems                int32
			recordedAt             time.Time
		)
		if err := rows.Scan(&frame, &deltaUS, &faults, &systems, &recordedAt); err != nil {
			return nil, err
		}
		result = append(result, FrameSample{
			Frame:      uint64(frame),
			Delta:      time.Duration(deltaUS) * time.Microsecond,
			Faults:     uint64(faults),
			Systems:    int(systems),
			RecordedAt: recordedAt,
		})
	}
	return result, rows.Err()
}

// PruneBefore deletes samples recorded before t and reports how many went.
func (r *JournalRepo) PruneBefore(ctx context.Context, t time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM frame_journal WHERE recorded_at < $1`, t,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func sampleRow(s FrameSample) []any {
	return []any{
		int64(s.Frame),
		s.Delta.Microseconds(),
		int64(s.Faults),
		int32(s.Systems),
		s.RecordedAt,
	}
}
