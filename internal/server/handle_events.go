package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ggstudio/mapveto/internal/engine"
)

// handleEvents streams session events to an authenticated player. The seat's
// connected flag tracks the lifetime of the stream.
func handleEvents(eng *engine.Engine, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			writeError(w, http.StatusUnauthorized, "token query parameter required")
			return
		}

		player, err := eng.PlayerByToken(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired session token")
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		flusher.Flush()

		eng.MarkConnected(r.Context(), player.ID, true)
		defer func() {
			// The request context is gone once the client disconnects.
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			eng.MarkConnected(ctx, player.ID, false)
		}()

		ch := broker.Subscribe(player.SessionID)
		defer broker.Unsubscribe(player.SessionID, ch)

		ping := time.NewTicker(30 * time.Second)
		defer ping.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case data := <-ch:
				fmt.Fprintf(w, "event: state\ndata: %s\n\n", data)
				flusher.Flush()
			case <-ping.C:
				fmt.Fprintf(w, ": ping\n\n")
				flusher.Flush()
			}
		}
	}
}
