package broadcast

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"massmsg/pkg/logx"
)

// dispatch attempts every message with independent outcomes. Workers share
// the sender object; serialization of any shared transport resource is the
// sender's responsibility.
func (d *Dispatcher) dispatch(ctx context.Context, msgs []Message) Result {
	res := Result{Total: len(msgs)}
	if len(msgs) == 0 {
		return res
	}
	start := time.Now()

	workers := d.cfg.Workers
	if workers > len(msgs) {
		workers = len(msgs)
	}
	var lim *rate.Limiter
	if d.cfg.RatePerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(d.cfg.RatePerSec), d.cfg.RatePerSec)
	}

	var sent, failed atomic.Int64
	queue := make(chan Message)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range queue {
				if d.sendOne(ctx, m, lim) {
					sent.Add(1)
				} else {
					failed.Add(1)
				}
			}
		}()
	}

feed:
	for _, m := range msgs {
		select {
		case <-ctx.Done():
			// Stop feeding; in-flight sends finish under their own
			// timeout.
			break feed
		case queue <- m:
		}
	}
	close(queue)
	wg.Wait()

	res.Sent = int(sent.Load())
	res.Failed = int(failed.Load())

	fields := []logx.Field{
		logx.Int("total", res.Total),
		logx.Int("sent", res.Sent),
		logx.Int("failed", res.Failed),
		logx.Duration("dur", time.Since(start)),
	}
	if res.Failed > 0 {
		d.log.Warn("broadcast finished with failures", fields...)
	} else {
		d.log.Info("broadcast finished", fields...)
	}
	return res
}

// sendOne performs a single bounded send and logs its outcome. A transport
// failure is terminal for that recipient within the run; there are no
// retries here.
func (d *Dispatcher) sendOne(ctx context.Context, m Message, lim *rate.Limiter) bool {
	recipient := m.Recipient.ID()
	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			d.log.Debug("send cancelled while pacing", logx.String("recipient", recipient), logx.Err(err))
			return false
		}
	}

	sctx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	err := m.send(sctx)
	cancel()
	if err != nil {
		d.log.Error("send failed", logx.String("recipient", recipient), logx.Err(err))
		return false
	}
	d.log.Info("message sent", logx.String("recipient", recipient), logx.String("content", m.Content))
	return true
}
