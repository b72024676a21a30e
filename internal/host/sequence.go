package host

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/tungla20/Solana-MKP/internal/store"
)

// Sequencer issues log sequence numbers.
type Sequencer interface {
	Next() int64
	Current() int64
}

// logSequence numbers log entries, accepted or rejected, in the order the
// runtime processes them.
type logSequence struct {
	last atomic.Int64
}

func newLogSequence(last int64) *logSequence {
	s := &logSequence{}
	s.last.Store(last)
	return s
}

func (s *logSequence) Next() int64    { return s.last.Add(1) }
func (s *logSequence) Current() int64 { return s.last.Load() }

// resumeSequence positions a sequence after the last logged entry. A database
// restored from a snapshot has no entries before its base seq, so the base
// wins when it is ahead of the log.
func resumeSequence(ctx context.Context, st *store.Store) (*logSequence, error) {
	last, err := st.LastSeq(ctx)
	if err != nil {
		return nil, err
	}
	base, err := st.Meta(ctx, store.MetaBaseSeq)
	if errors.Is(err, store.ErrNotFound) {
		return newLogSequence(last), nil
	}
	if err != nil {
		return nil, err
	}
	n, err := strconv.ParseInt(base, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("meta %s: %w", store.MetaBaseSeq, err)
	}
	return newLogSequence(max(last, n)), nil
}
