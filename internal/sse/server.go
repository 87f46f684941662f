package sse

import (
	"net/http"
	"sync"

	"github.com/julienschmidt/httprouter"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Server fans frames out to the subscribers of each stream. A stream
// is one game session; every HTTP connection to it is a subscriber.
type Server struct {
	mux                sync.RWMutex
	SubscribeHandler   func(stream string, session *Session)
	UnsubscribeHandler func(stream string, session *Session)
	streams            map[string]map[string]*Session
}

func New() *Server {
	return &Server{
		streams: make(map[string]map[string]*Session),
	}
}

func (s *Server) HandleFunc() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		stream := p.ByName("id")

		id, err := gonanoid.New()

		if err != nil {
			return
		}

		session := newSession()

		s.mux.Lock()
		subscribers, ok := s.streams[stream]
		if !ok {
			subscribers = make(map[string]*Session)
			s.streams[stream] = subscribers
		}
		subscribers[id] = session
		s.mux.Unlock()

		if s.SubscribeHandler != nil {
			s.SubscribeHandler(stream, session)
		}

		session.Send(&Event{
			Data: Hello{Stream: stream},
		})

		session.listen(w, r)

		s.mux.Lock()
		delete(s.streams[stream], id)
		if len(s.streams[stream]) == 0 {
			delete(s.streams, stream)
		}
		s.mux.Unlock()

		if s.UnsubscribeHandler != nil {
			s.UnsubscribeHandler(stream, session)
		}
	}
}

// Publish sends one frame to every subscriber of the stream.
func (s *Server) Publish(stream string, e *Event) {
	s.mux.RLock()
	sessions := make([]*Session, 0, len(s.streams[stream]))
	for _, session := range s.streams[stream] {
		sessions = append(sessions, session)
	}
	s.mux.RUnlock()

	for _, session := range sessions {
		session.Send(e)
	}
}

func (s *Server) Subscribers(stream string) int {
	s.mux.RLock()
	defer s.mux.RUnlock()

	return len(s.streams[stream])
}
