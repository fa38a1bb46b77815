package world

import (
	"context"
	"sync"

	"github.com/golang/glog"
)

// Session owns the single Driver shared by every Browser built on it. The
// Driver is dialed on first use; a failed dial is remembered and returned to
// every later caller.
type Session struct {
	dial Dialer
	caps Capabilities

	mu     sync.Mutex
	dialed bool
	closed bool
	driver Driver
	err    error
}

// NewSession returns a Session that dials its Driver with caps on first use.
func NewSession(dial Dialer, caps Capabilities) *Session {
	return &Session{dial: dial, caps: caps}
}

// Capabilities returns the capabilities the Session dials with.
func (s *Session) Capabilities() Capabilities {
	return s.caps
}

// Driver returns the Session's Driver, dialing it if needed.
func (s *Session) Driver(ctx context.Context) (Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	if !s.dialed {
		s.dialed = true
		glog.V(1).Infof("world: starting %s session", s.caps.Browser)
		s.driver, s.err = s.dial(ctx, s.caps)
		if s.err != nil {
			glog.V(1).Infof("world: starting %s session failed: %v", s.caps.Browser, s.err)
		}
	}
	return s.driver, s.err
}

// Close quits the Driver, if one was dialed. Later calls to Driver return
// ErrSessionClosed. Closing twice is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.driver == nil {
		return nil
	}
	d := s.driver
	s.driver = nil
	return d.Close()
}

// current returns the dialed Driver without dialing, or nil.
func (s *Session) current() Driver {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driver
}
