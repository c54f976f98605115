/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package relay

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

const (
	pollWait    = 25 * time.Second
	pollIdle    = 60 * time.Second
	pollBuffer  = 64
	pollMaxBody = 64 << 10
)

var errPollClosed = errors.New("poll session closed")

// pollConn is a Conn whose frames are carried by plain HTTP requests. A closed
// session stays addressable until its last frames are drained or nobody has
// polled it for pollIdle.
type pollConn struct {
	id     string
	inbox  chan Envelope
	outbox chan Envelope
	done   chan struct{}
	once   sync.Once
	idle   *time.Timer
	forget func(string)
}

func newPollConn(id string, forget func(string)) *pollConn {
	p := &pollConn{
		id:     id,
		inbox:  make(chan Envelope),
		outbox: make(chan Envelope, pollBuffer),
		done:   make(chan struct{}),
		forget: forget,
	}
	p.idle = time.AfterFunc(pollIdle, p.expire)
	return p
}

// expire closes an abandoned session and drops it.
func (p *pollConn) expire() {
	_ = p.Close()
	p.release()
}

func (p *pollConn) release() {
	p.idle.Stop()
	if p.forget != nil {
		p.forget(p.id)
	}
}

func (p *pollConn) ReadEnvelope() (Envelope, error) {
	select {
	case env := <-p.inbox:
		return env, nil
	case <-p.done:
		return Envelope{}, io.EOF
	}
}

func (p *pollConn) WriteEnvelope(env Envelope) error {
	select {
	case p.outbox <- env:
		return nil
	case <-p.done:
		return errPollClosed
	}
}

func (p *pollConn) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}

// push hands one inbound frame to the read loop.
func (p *pollConn) push(env Envelope, cancel <-chan struct{}) error {
	select {
	case p.inbox <- env:
		return nil
	case <-p.done:
		return errPollClosed
	case <-cancel:
		return errPollClosed
	}
}

// drain waits up to wait for the first queued frame and then takes whatever
// else is already queued. It returns errPollClosed once the session is closed
// and nothing is left to deliver, dropping the session.
func (p *pollConn) drain(wait time.Duration, cancel <-chan struct{}) ([]Envelope, error) {
	p.idle.Reset(pollIdle)

	out := []Envelope{}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case env := <-p.outbox:
		out = append(out, env)
	case <-p.done:
	case <-timer.C:
		return out, nil
	case <-cancel:
		return out, nil
	}

	for {
		select {
		case env := <-p.outbox:
			out = append(out, env)
		default:
			if len(out) == 0 {
				p.release()
				return nil, errPollClosed
			}
			return out, nil
		}
	}
}

type pollSessions struct {
	mu       sync.Mutex
	sessions map[string]*pollConn
}

func newPollSessions() *pollSessions {
	return &pollSessions{sessions: make(map[string]*pollConn)}
}

func (ps *pollSessions) open() *pollConn {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	p := newPollConn(uuid.NewString(), ps.forget)
	ps.sessions[p.id] = p
	return p
}

func (ps *pollSessions) get(id string) *pollConn {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.sessions[id]
}

func (ps *pollSessions) forget(id string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	delete(ps.sessions, id)
}

func (ps *pollSessions) len() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return len(ps.sessions)
}

type pollOpened struct {
	SID string `json:"sid"`
}

func writePollJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) openPoll(remote func(*http.Request) string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		p := s.polls.open()

		go s.Attach(p, remote(r))

		s.log.Debug("poll session opened", zap.String("sid", p.id), zap.String("remote", remote(r)))

		writePollJSON(w, http.StatusCreated, pollOpened{SID: p.id})
	}
}

func (s *Server) receivePoll() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		p := s.polls.get(ps.ByName("sid"))
		if p == nil {
			http.Error(w, "unknown poll session", http.StatusNotFound)
			return
		}

		frames, err := p.drain(pollWait, r.Context().Done())
		if err != nil {
			http.Error(w, "poll session closed", http.StatusGone)
			return
		}

		writePollJSON(w, http.StatusOK, frames)
	}
}

func (s *Server) sendPoll() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		p := s.polls.get(ps.ByName("sid"))
		if p == nil {
			http.Error(w, "unknown poll session", http.StatusNotFound)
			return
		}

		var env Envelope
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, pollMaxBody)).Decode(&env); err != nil || env.Event == "" {
			http.Error(w, "malformed frame", http.StatusBadRequest)
			return
		}

		if err := p.push(env, r.Context().Done()); err != nil {
			http.Error(w, "poll session closed", http.StatusGone)
			return
		}

		w.WriteHeader(http.StatusAccepted)
	}
}

func (s *Server) closePoll() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if p := s.polls.get(ps.ByName("sid")); p != nil {
			_ = p.Close()
			p.release()
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
