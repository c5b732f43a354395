package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PollFunc performs one poll. It must return once ctx is done.
type PollFunc func(ctx context.Context)

// Start calls poll every interval until ctx is done. Each tick launches poll in
// its own goroutine without waiting for the previous one, so a hung poll never
// delays the clock; overlap has to be handled by poll itself.
//
// Start returns nil once ctx is done and every launched poll has returned.
func Start(
	ctx context.Context,
	log *zap.SugaredLogger,
	name string,
	poll PollFunc,
	interval time.Duration,
) error {
	if log == nil {
		return errors.New("invalid logger: must not be nil")
	}
	if poll == nil {
		return errors.New("invalid poll func: must not be nil")
	}
	if interval <= 0 {
		return errors.New("invalid interval: must be greater than 0")
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	t := time.NewTicker(interval)
	defer t.Stop()

	log.Debugw("poll scheduler started", "feed", name, "interval", interval)
	for {
		select {
		case <-ctx.Done():
			log.Debugw("poll scheduler stopped", "feed", name)
			return nil
		case <-t.C:
			wg.Add(1)
			go func() {
				defer wg.Done()
				poll(ctx)
			}()
		}
	}
}
