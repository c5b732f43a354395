package feed

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StateReader exposes the state of a feed. Both Engine and Session implement it.
type StateReader interface {
	State() State
}

// StartStalenessWatchdog warns when a ready feed has not completed a head poll
// within maxAge. It returns when ctx is done.
func StartStalenessWatchdog(ctx context.Context, log *zap.SugaredLogger, r StateReader, interval, maxAge time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			st := r.State()
			if !st.Phase.Ready() {
				continue
			}
			if age := time.Since(st.LastHeadSync); age > maxAge {
				log.Warnw("feed head stale",
					"feed", st.Feed,
					"age", age,
					"highest", st.Boundaries.Highest,
					"error", st.HeadErr,
				)
			}
		}
	}
}
