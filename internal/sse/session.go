package sse

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
)

const keepaliveInterval = 15 * time.Second

type Session struct {
	messageChan chan string
	done        chan struct{}
	once        sync.Once
}

func newSession() *Session {
	return &Session{
		messageChan: make(chan string, 64),
		done:        make(chan struct{}),
	}
}

// Send queues one frame for the subscriber. Frames from a single
// caller reach the wire in call order. Once the subscriber is gone the
// frame is dropped.
func (s *Session) Send(e *Event) {
	frame, err := e.frame()
	if err != nil {
		log.Println(err)

		return
	}

	select {
	case s.messageChan <- frame:
	case <-s.done:
	}
}

func (s *Session) listen(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	defer s.close()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)

		return
	}

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {

		case frame := <-s.messageChan:
			fmt.Fprint(w, frame)
			flusher.Flush()

		// comment frames keep idle connections open through proxies
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()

		// connection is closed then defer will be executed
		case <-r.Context().Done():
			return

		}
	}
}

func (s *Session) close() {
	s.once.Do(func() {
		close(s.done)
	})
}
