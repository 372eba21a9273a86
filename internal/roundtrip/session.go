package roundtrip

import (
	"time"

	"github.com/ajitpratap0/chunkbench/pkg/bencherrors"
	"github.com/ajitpratap0/chunkbench/pkg/superchunk"
)

// State is a session's lifecycle position.
type State int

const (
	// StateCreated has no container yet.
	StateCreated State = iota
	// StateConfigured has an empty container.
	StateConfigured
	// StateAppending has at least one chunk appended.
	StateAppending
	// StateSealed accepts no more chunks.
	StateSealed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConfigured:
		return "configured"
	case StateAppending:
		return "appending"
	case StateSealed:
		return "sealed"
	default:
		return "unknown"
	}
}

// Session wraps one compressed container and owns its append/seal
// lifecycle. It times every append and checks that the backend stores
// chunks in sequence. The tuner behind the container is never consulted
// here.
type Session struct {
	backend   superchunk.Backend
	container superchunk.Container
	state     State

	next         int
	compressTime time.Duration
}

// NewSession creates a session in the Created state.
func NewSession(backend superchunk.Backend) *Session {
	return &Session{backend: backend}
}

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Configure validates cfg and creates the container.
func (s *Session) Configure(cfg superchunk.Config) error {
	if s.state != StateCreated {
		return bencherrors.Newf(bencherrors.ErrorTypeInvalidState, "configure in %s state", s.state)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	container, err := s.backend.NewContainer(cfg)
	if err != nil {
		return bencherrors.Wrap(err, bencherrors.TypeOf(err), "create container")
	}
	s.container = container
	s.state = StateConfigured
	return nil
}

// AppendChunk compresses chunk into the container and adds the elapsed wall
// time to the session's compression time.
func (s *Session) AppendChunk(chunk []byte) error {
	if s.state != StateConfigured && s.state != StateAppending {
		return bencherrors.Newf(bencherrors.ErrorTypeInvalidState, "append in %s state", s.state).
			WithDetail("chunk", s.next)
	}

	start := time.Now()
	index, err := s.container.Append(chunk)
	s.compressTime += time.Since(start)
	if err != nil {
		return bencherrors.Wrap(err, bencherrors.TypeOf(err), "append chunk").
			WithDetail("chunk", s.next)
	}
	if index != s.next {
		return bencherrors.New(bencherrors.ErrorTypeAppend, "backend stored chunk out of sequence").
			WithDetail("expected", s.next).
			WithDetail("got", index)
	}

	s.next++
	s.state = StateAppending
	return nil
}

// Seal forbids further appends.
func (s *Session) Seal() error {
	if s.state != StateConfigured && s.state != StateAppending {
		return bencherrors.Newf(bencherrors.ErrorTypeInvalidState, "seal in %s state", s.state)
	}
	s.container.Seal()
	s.state = StateSealed
	return nil
}

// Container returns the container, or nil before Configure.
func (s *Session) Container() superchunk.Container { return s.container }

// Chunks returns the number of chunks appended.
func (s *Session) Chunks() int { return s.next }

// CompressTime is the summed wall time of all appends.
func (s *Session) CompressTime() time.Duration { return s.compressTime }

// Close releases the container.
func (s *Session) Close() error {
	if s.container == nil {
		return nil
	}
	err := s.container.Close()
	s.container = nil
	return err
}
