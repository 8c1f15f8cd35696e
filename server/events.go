package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/jrsteele09/go-signin/session"
)

const eventBuffer = 16

// broadcaster fans committed session states out to event stream clients.
type broadcaster struct {
	lock        sync.Mutex
	clients     map[chan session.State]struct{}
	unsubscribe func()
	done        chan struct{}
	closeOnce   sync.Once
}

func newBroadcaster(manager *session.Manager) *broadcaster {
	b := &broadcaster{
		clients: make(map[chan session.State]struct{}),
		done:    make(chan struct{}),
	}
	b.unsubscribe = manager.Subscribe(b.publish)
	return b
}

// publish never blocks the session: a slow client loses its oldest pending state.
func (b *broadcaster) publish(s session.State) {
	b.lock.Lock()
	defer b.lock.Unlock()
	for ch := range b.clients {
		select {
		case ch <- s:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

func (b *broadcaster) subscribe() (<-chan session.State, func()) {
	ch := make(chan session.State, eventBuffer)
	b.lock.Lock()
	b.clients[ch] = struct{}{}
	b.lock.Unlock()

	return ch, func() {
		b.lock.Lock()
		delete(b.clients, ch)
		b.lock.Unlock()
	}
}

func (b *broadcaster) close() {
	b.closeOnce.Do(func() {
		b.unsubscribe()
		close(b.done)
	})
}

type stateEvent struct {
	State         session.Kind `json:"state"`
	Reason        string       `json:"reason,omitempty"`
	Authenticated bool         `json:"authenticated"`
}

// SessionEventsHandler streams one server-sent "state" event per committed session
// state, starting with the current one.
func (s *Server) SessionEventsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeJSONError(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		states, cancel := s.events.subscribe()
		defer cancel()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		if err := writeStateEvent(w, s.manager.State()); err != nil {
			return
		}
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-s.events.done:
				return
			case state := <-states:
				if err := writeStateEvent(w, state); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

func writeStateEvent(w http.ResponseWriter, state session.State) error {
	data, err := json.Marshal(stateEvent{
		State:         state.Kind,
		Reason:        state.Reason,
		Authenticated: state.Kind == session.Authenticated,
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: state\ndata: %s\n\n", data)
	return err
}
