package sse

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/dashboard-api/internal/events"
)

type httpSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s httpSink) Write(p []byte) (int, error) { return s.w.Write(p) }

func (s httpSink) Flush() error {
	s.flusher.Flush()
	return nil
}

// Handler streams the mutation events of resource r. Each request gets its
// own Conn that lives until the client disconnects.
func Handler(hub *events.Hub, r events.Resource, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ch := hub.Channel(r)
		if ch == nil {
			http.Error(w, "unknown resource", http.StatusNotFound)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		h := w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		conn := NewConn(ch, r, httpSink{w: w, flusher: flusher}, opts)
		conn.Open()

		log := zap.L().With(zap.String("resource", string(r)))
		log.Debug("sse: client connected")
		if err := conn.Run(req.Context()); err != nil {
			log.Debug("sse: stream ended", zap.Error(err))
			return
		}
		log.Debug("sse: client disconnected")
	}
}
