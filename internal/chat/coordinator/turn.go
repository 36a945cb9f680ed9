package coordinator

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/ashleydavis/wunderlust-example/internal/chat/toolkit"
	"github.com/ashleydavis/wunderlust-example/internal/protocol"
)

// DefaultPollInterval is the fixed interval between polls while a run is
// active.
const DefaultPollInterval = time.Second

// UpdateFunc receives every poll result so the caller can refresh its
// message log view.
type UpdateFunc func(*TurnUpdate)

// RunTurn drives a complete turn: submit the text, then poll at the given
// interval, dispatching tool invocations through the registry as the run
// requests them, until the run reaches a terminal status and the slot
// clears. The ticker stops with the turn, so no timer outlives its run;
// each tick waits for the prior call to finish, so polls never overlap.
//
// Transport errors during polling are retried on the next tick. Cancelling
// the context abandons the run locally; the remote run may continue
// invisibly.
func (c *Coordinator) RunTurn(ctx context.Context, text string, registry *toolkit.Registry, interval time.Duration, onUpdate UpdateFunc) error {
	if _, err := c.SubmitTurn(ctx, text); err != nil {
		return err
	}
	return c.followRun(ctx, registry, interval, onUpdate)
}

// RunAudioTurn is RunTurn for a recorded audio clip; the relay transcribes
// it server-side before starting the run.
func (c *Coordinator) RunAudioTurn(ctx context.Context, audio []byte, registry *toolkit.Registry, interval time.Duration, onUpdate UpdateFunc) error {
	if _, err := c.SubmitAudioTurn(ctx, audio); err != nil {
		return err
	}
	return c.followRun(ctx, registry, interval, onUpdate)
}

func (c *Coordinator) followRun(ctx context.Context, registry *toolkit.Registry, interval time.Duration, onUpdate UpdateFunc) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.AbandonRun()
			return ctx.Err()
		case <-ticker.C:
		}

		update, err := c.Poll(ctx)
		if err != nil {
			var te *TransportError
			if errors.As(err, &te) {
				log.Printf("WARN poll failed, retrying: %v", err)
				continue
			}
			return err
		}
		if onUpdate != nil {
			onUpdate(update)
		}

		switch {
		case update.Status == protocol.RunStatusRequiresAction && len(update.Pending) > 0:
			results, err := c.DispatchTools(update.Pending, registry)
			if err != nil {
				// Unknown function: the run is stalled and cannot
				// proceed. Fatal for the turn, not the conversation.
				c.AbandonRun()
				return err
			}
			if err := c.SubmitToolResults(ctx, results); err != nil {
				return err
			}

		case update.Status == protocol.RunStatusCompleted:
			return c.settleAndClear(ctx, onUpdate)

		case update.Status.Terminal():
			snap := c.Snapshot()
			c.ClearRunIfTerminal()
			return &RunFailedError{RunID: snap.ActiveRunID, Status: string(update.Status)}
		}
	}
}

// settleAndClear waits out the settle delay, refreshes the log once more to
// pick up content finalized after the completed status, then clears the
// run slot.
func (c *Coordinator) settleAndClear(ctx context.Context, onUpdate UpdateFunc) error {
	select {
	case <-ctx.Done():
		c.AbandonRun()
		return ctx.Err()
	case <-time.After(c.settleDelay):
	}

	if update, err := c.Poll(ctx); err == nil && onUpdate != nil {
		onUpdate(update)
	}
	c.AbandonRun()
	return nil
}
