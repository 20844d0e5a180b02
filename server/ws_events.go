package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"schls/core/audio"
	"schls/logger"
)

const writeWait = 10 * time.Second

// eventMessage is the JSON form of an audio.Event.
type eventMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Current *int64 `json:"current,omitempty"`
	Total   *int64 `json:"total,omitempty"`
	Path    string `json:"path,omitempty"`
	Error   string `json:"error,omitempty"`
}

func toMessage(ev audio.Event) eventMessage {
	switch e := ev.(type) {
	case audio.StageEvent:
		return eventMessage{Type: "stage", Message: e.Message}
	case audio.ProgressEvent:
		msg := eventMessage{Type: "progress"}
		if e.HasCurrent() {
			cur := e.Current
			msg.Current = &cur
		}
		if e.HasTotal() {
			total := e.Total
			msg.Total = &total
		}
		return msg
	case audio.DoneEvent:
		msg := eventMessage{Type: "done", Path: e.Path}
		if e.Err != nil {
			msg.Error = e.Err.Error()
		}
		return msg
	}
	return eventMessage{Type: "unknown"}
}

// streamEvents replays a job's events over a websocket and then follows it
// until it finishes or the client goes away.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	j, ok := s.jobs.get(id)
	if !ok {
		http.Error(w, "download not found", http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Failed to upgrade WebSocket", logger.String("job", id), logger.ErrorField(err))
		return
	}
	defer conn.Close()

	// Reads are only needed to notice the client closing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	replay, ch := j.subscribe()
	if ch != nil {
		defer j.unsubscribe(ch)
	}

	send := func(msg eventMessage) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			logger.Debug("websocket write failed", logger.String("job", id), logger.ErrorField(err))
			return false
		}
		return true
	}

	for _, msg := range replay {
		if !send(msg) {
			return
		}
	}

	for ch != nil {
		select {
		case msg, ok := <-ch:
			if !ok {
				ch = nil
				break
			}
			if !send(msg) {
				return
			}
		case <-gone:
			return
		}
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
}
