package progress

import (
	"context"
	"time"
)

// Follow drives one client connection: a connected event, the current state,
// then live events with periodic heartbeats. It returns after a terminal
// event, when the subscription closes, when ctx ends or when send fails.
func Follow(ctx context.Context, sub *Subscription, current Event, heartbeat time.Duration, send func(Event) error) error {
	if err := send(Event{Type: EventConnected, Stage: current.Stage, Percentage: current.Percentage, Timestamp: time.Now().UTC()}); err != nil {
		return err
	}
	if err := send(current); err != nil {
		return err
	}
	if current.Terminal() {
		return nil
	}

	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := send(Event{Type: EventHeartbeat, Timestamp: time.Now().UTC()}); err != nil {
				return err
			}
		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err := send(ev); err != nil {
				return err
			}
			if ev.Terminal() {
				return nil
			}
		}
	}
}
