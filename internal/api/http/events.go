package httpapi

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/i474232898/mapsi/internal/session"
	"github.com/i474232898/mapsi/internal/webui"
)

var keepAliveInterval = 15 * time.Second

// streamEvents sends the full view once, then every change, as SSE.
func streamEvents(c *fiber.Ctx, sess *session.Session) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	bus := sess.View.Bus()
	events := bus.Subscribe()
	initial := sess.View.Model()

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer bus.Unsubscribe(events)

		if err := writeEvent(w, webui.Event{Type: "snapshot", Data: initial}); err != nil {
			return
		}

		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()

		for {
			select {
			case e, ok := <-events:
				if !ok {
					return
				}
				if err := writeEvent(w, e); err != nil {
					log.Printf("DEBUG: event stream for session %s closed: %v", sess.ID, err)
					return
				}
			case <-ticker.C:
				sess.Touch()
				if _, err := w.WriteString(": ping\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))
	return nil
}

func writeEvent(w *bufio.Writer, e webui.Event) error {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data); err != nil {
		return err
	}
	return w.Flush()
}
