package workflow

import (
	"context"
	"errors"

	"github.com/rxdesk/rxdesk/internal/domain/selection"
	"github.com/rxdesk/rxdesk/internal/platform/suggest"
	"github.com/rxdesk/rxdesk/internal/platform/websocket"
)

// startFetchLocked requests suggestions for the current intake. The result
// is applied only if no newer fetch was started in the meantime.
func (c *Controller) startFetchLocked() {
	c.stopFetchLocked()

	gen := c.engine.BeginFetch()
	req := suggest.Request{
		Symptoms:         append([]string{}, c.intake.Symptoms...),
		HealthConditions: append([]string{}, c.intake.Conditions...),
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.deps.FetchTimeout)
	done := make(chan struct{})
	c.cancelFetch = cancel
	c.fetchDone = done

	c.logger.Info().Uint64("generation", gen).Int("symptoms", len(req.Symptoms)).Msg("fetching suggestions")

	client := c.deps.Suggest
	go func() {
		defer close(done)
		defer cancel()

		var (
			cands []selection.Candidate
			err   error
		)
		if client == nil {
			err = errors.New("no suggestion source configured")
		} else {
			var resp *suggest.Response
			resp, err = client.Suggest(ctx, req)
			if err == nil && resp != nil {
				cands = resp.Medicines
			}
		}
		c.completeFetch(gen, cands, err)
	}()
}

func (c *Controller) completeFetch(gen uint64, cands []selection.Candidate, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.engine.CompleteFetch(gen, cands, err) {
		c.logger.Debug().Uint64("generation", gen).Msg("stale suggestion response dropped")
		return
	}
	if err != nil {
		_, fetchErr := c.engine.Status()
		c.logger.Warn().Err(err).Uint64("generation", gen).Msg("suggestion fetch failed")
		c.publish(websocket.EventSuggestionsError, map[string]any{"generation": gen, "error": fetchErr.Error()})
		return
	}
	n := len(c.engine.Candidates())
	c.logger.Info().Uint64("generation", gen).Int("candidates", n).Msg("suggestions ready")
	c.publish(websocket.EventSuggestionsReady, map[string]any{"generation": gen, "count": n})
}

func (c *Controller) stopFetchLocked() {
	if c.cancelFetch != nil {
		c.cancelFetch()
		c.cancelFetch = nil
	}
}

// WaitForSuggestions blocks until the latest fetch has finished or ctx ends.
func (c *Controller) WaitForSuggestions(ctx context.Context) error {
	c.mu.Lock()
	done := c.fetchDone
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
