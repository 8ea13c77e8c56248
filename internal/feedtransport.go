package internal

import (
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
	httptransport "github.com/go-kit/kit/transport/http"

	"github.com/derWhity/whispqr/internal/ctxhelper"
	"github.com/derWhity/whispqr/internal/log"
	"github.com/derWhity/whispqr/internal/models"
)

const (
	// Interval for sending comment lines through idle feeds so proxies keep the connection open
	feedKeepAlive = 25 * time.Second

	sseEventMessages = "messages"
	sseEventError    = "error"
)

// A single delivery of a subscription
type feedUpdate struct {
	msgs []models.Message
	err  error
}

// makeFeedHandler returns the handler streaming the live message feed of an event as server-sent events.
// Every "messages" event carries the full list the caller may see. The stream ends once the event is gone.
func makeFeedHandler(ms MessageService, before []httptransport.RequestFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		for _, f := range before {
			ctx = f(ctx, r)
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			encodeError(ctx, MakeError(
				http.StatusInternalServerError,
				ErrCodeFeedUnavailable,
				"Streaming is not supported by this connection",
			), w)
			return
		}
		eventID, err := getStringFromPath("id", r)
		if err != nil {
			encodeError(ctx, err, w)
			return
		}
		logger := ctxhelper.Logger(ctx).WithField(log.FldEvent, eventID)

		// Only the newest snapshot is of interest - older undelivered ones get replaced
		updates := make(chan feedUpdate, 1)
		onUpdate := func(msgs []models.Message, err error) {
			select {
			case <-updates:
			default:
			}
			updates <- feedUpdate{msgs, err}
		}
		sub, err := ms.Subscribe(ctx, eventID, ctxhelper.Identity(ctx), onUpdate)
		if err != nil {
			encodeError(ctx, err, w)
			return
		}
		defer sub.Cancel()

		w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()
		logger.Debug("Live feed opened")

		ticker := time.NewTicker(feedKeepAlive)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				logger.Debug("Live feed closed by client")
				return
			case <-sub.Done():
				return
			case <-ticker.C:
				if _, err := w.Write([]byte(": keep-alive\n\n")); err != nil {
					return
				}
				flusher.Flush()
			case u := <-updates:
				ev := sse.Event{Event: sseEventMessages, Data: basicResponse{true, u.msgs}}
				if u.err != nil {
					ev = sse.Event{Event: sseEventError, Data: makeErrorResponse(u.err)}
				}
				if err := sse.Encode(w, ev); err != nil {
					logger.WithError(err).Warn("Failed to write to live feed")
					return
				}
				flusher.Flush()
				if u.err == ErrEventNotFound {
					logger.Debug("Event gone - closing live feed")
					return
				}
			}
		}
	})
}
