package admin

import "context"

// PollReason is why PollKeys stopped.
type PollReason int

const (
	// PollConverged means more than one key is listed.
	PollConverged PollReason = iota

	// PollExhausted means the attempt ceiling was reached.
	PollExhausted

	// PollStateChanged means the session left StateValid.
	PollStateChanged

	// PollCancelled means the context ended the poll.
	PollCancelled
)

func (r PollReason) String() string {
	switch r {
	case PollConverged:
		return "converged"
	case PollExhausted:
		return "exhausted"
	case PollStateChanged:
		return "state_changed"
	case PollCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// PollResult reports how a poll ended.
type PollResult struct {
	Attempts int
	Reason   PollReason
}

// PollKeys re-lists the keys at a fixed interval while the session is valid
// and at most one key is listed. The first attempt runs immediately; the
// poll never exceeds the attempt ceiling.
func (c *Controller) PollKeys(ctx context.Context) PollResult {
	attempts := 0
	for {
		if reason, done := c.pollStop(ctx, attempts); done {
			return c.pollDone(attempts, reason)
		}

		if attempts > 0 {
			if err := c.clock.Sleep(ctx, c.pollInterval); err != nil {
				return c.pollDone(attempts, PollCancelled)
			}
			if reason, done := c.pollStop(ctx, attempts); done {
				return c.pollDone(attempts, reason)
			}
		}

		if err := c.refresh(ctx, true); err != nil {
			c.logger.Debug("key poll attempt failed", "attempt", attempts+1, "error", err)
		}
		attempts++
	}
}

func (c *Controller) pollStop(ctx context.Context, attempts int) (PollReason, bool) {
	if ctx.Err() != nil {
		return PollCancelled, true
	}

	c.mu.Lock()
	state, count := c.state, len(c.keys)
	c.mu.Unlock()

	switch {
	case state != StateValid:
		return PollStateChanged, true
	case count > 1:
		return PollConverged, true
	case attempts >= c.pollMaxAttempts:
		return PollExhausted, true
	}
	return 0, false
}

func (c *Controller) pollDone(attempts int, reason PollReason) PollResult {
	c.logger.Debug("key poll finished", "attempts", attempts, "reason", reason.String())
	return PollResult{Attempts: attempts, Reason: reason}
}
