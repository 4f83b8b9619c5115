package battle

import (
	"context"
	"fmt"

	"github.com/tezroqyoz/typebattle/go/internal/store"
)

// ProgressUpdate is one player's recomputed live stats.
type ProgressUpdate struct {
	Progress int
	WPM      int
	Accuracy int
	Finished bool
}

// ProgressReporter relays a player's stats to that player's own entry in the
// shared room document. The store-backed reporter writes on every call, one
// write per keystroke; a debounced or batched reporter can be substituted
// here without touching the state machine.
type ProgressReporter interface {
	Report(ctx context.Context, code, uid string, upd ProgressUpdate) error
}

type storeReporter struct {
	store store.Store
}

// NewStoreReporter returns the default unthrottled reporter.
func NewStoreReporter(st store.Store) ProgressReporter {
	return storeReporter{store: st}
}

func (r storeReporter) Report(ctx context.Context, code, uid string, upd ProgressUpdate) error {
	fields := map[string]any{
		"progress": upd.Progress,
		"wpm":      upd.WPM,
		"accuracy": upd.Accuracy,
	}
	// finished is only ever written as true, so it is set exactly once and
	// never regresses.
	if upd.Finished {
		fields["finished"] = true
	}
	if err := r.store.Update(ctx, store.PlayerPath(code, uid), fields); err != nil {
		return fmt.Errorf("report progress for %s in %s: %w", uid, code, err)
	}
	return nil
}
