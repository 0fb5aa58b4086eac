package gateway

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ufoarena/realtime-server/internal/room"
)

// runRoomTicker drives one room on its own fixed-rate ticker, mirroring the
// teacher's single gameLoop but generalized: this process hosts many
// independently-ticking rooms rather than one shared simulation. A tick
// that panics is recovered and logged rather than taking the room's
// goroutine (and the rest of the gateway) down with it.
func runRoomTicker(ctx context.Context, r room.Room, log zerolog.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			tickSafely(r, log, t.UnixMilli())
		}
	}
}

func tickSafely(r room.Room, log zerolog.Logger, nowMS int64) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("room_id", r.ID()).Interface("panic", rec).Msg("room tick panicked")
		}
	}()
	r.Tick(nowMS)
}
