package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// eventStream writes server-sent events as `data: <json>\n\n` frames.
type eventStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	broken  bool
}

func openEventStream(w http.ResponseWriter) (*eventStream, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &eventStream{w: w, flusher: flusher}, true
}

// send writes one frame. After the first write error the stream stays
// silent; the request context carries the disconnect to the producer.
func (es *eventStream) send(v any) {
	if es.broken {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("encode sse frame", slog.Any("error", err))
		return
	}
	if _, err := fmt.Fprintf(es.w, "data: %s\n\n", data); err != nil {
		es.broken = true
		slog.Debug("sse client gone", slog.Any("error", err))
		return
	}
	es.flusher.Flush()
}
