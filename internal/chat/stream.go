package chat

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dashboard-api/internal/llm"
)

// uiStream writes the UI message stream protocol understood by the
// dashboard's chat client. Nothing reaches the wire until the first event,
// so a failure before then can still become a plain JSON error response.
type uiStream struct {
	w         http.ResponseWriter
	flusher   http.Flusher
	messageID string

	committed bool
	textID    string
	parts     int
}

func newUIStream(w http.ResponseWriter) *uiStream {
	f, _ := w.(http.Flusher)
	return &uiStream{w: w, flusher: f, messageID: "msg-" + uuid.NewString()}
}

func (s *uiStream) commit() error {
	if s.committed {
		return nil
	}
	s.committed = true

	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set("x-vercel-ai-ui-message-stream", "v1")
	s.w.WriteHeader(http.StatusOK)

	return s.frame(map[string]any{"type": "start", "messageId": s.messageID})
}

func (s *uiStream) frame(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return eris.Wrap(err, "chat: encode frame")
	}
	return s.raw(data)
}

func (s *uiStream) raw(data []byte) error {
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return eris.Wrap(err, "chat: write frame")
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

func (s *uiStream) closeText() error {
	if s.textID == "" {
		return nil
	}
	id := s.textID
	s.textID = ""
	return s.frame(map[string]any{"type": "text-end", "id": id})
}

func (s *uiStream) TextDelta(text string) error {
	if text == "" {
		return nil
	}
	if err := s.commit(); err != nil {
		return err
	}
	if s.textID == "" {
		s.parts++
		s.textID = fmt.Sprintf("text-%d", s.parts)
		if err := s.frame(map[string]any{"type": "text-start", "id": s.textID}); err != nil {
			return err
		}
	}
	return s.frame(map[string]any{"type": "text-delta", "id": s.textID, "delta": text})
}

func (s *uiStream) ToolCall(call llm.ToolCall) error {
	if err := s.commit(); err != nil {
		return err
	}
	if err := s.closeText(); err != nil {
		return err
	}
	input := call.Input
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	return s.frame(map[string]any{
		"type":       "tool-input-available",
		"toolCallId": call.ID,
		"toolName":   call.Name,
		"input":      input,
	})
}

func (s *uiStream) ToolResult(call llm.ToolCall, output json.RawMessage) error {
	if err := s.commit(); err != nil {
		return err
	}
	return s.frame(map[string]any{
		"type":       "tool-output-available",
		"toolCallId": call.ID,
		"output":     output,
	})
}

// finish ends a successful stream.
func (s *uiStream) finish() error {
	if err := s.commit(); err != nil {
		return err
	}
	if err := s.closeText(); err != nil {
		return err
	}
	if err := s.frame(map[string]any{"type": "finish"}); err != nil {
		return err
	}
	return s.raw([]byte("[DONE]"))
}

// fail ends a committed stream with a single error frame.
func (s *uiStream) fail(msg string) error {
	if err := s.frame(map[string]any{"type": "error", "errorText": msg}); err != nil {
		return err
	}
	return s.raw([]byte("[DONE]"))
}
