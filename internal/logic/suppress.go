package logic

import (
	"strings"
	"sync"
)

// Suppressor drops a payload equal to the one forwarded immediately before
// it. Only neighbours are compared; there is no history set.
type Suppressor struct {
	mu   sync.Mutex
	last string
	has  bool
}

// NewSuppressor creates an empty Suppressor.
func NewSuppressor() *Suppressor {
	return &Suppressor{}
}

// ShouldForward reports whether payload differs from the last forwarded
// payload. A forwarded payload becomes the new comparison value.
func (s *Suppressor) ShouldForward(payload string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.has && payload == s.last {
		return false
	}
	s.last = payload
	s.has = true
	return true
}

// Last returns the last forwarded payload, if any.
func (s *Suppressor) Last() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.has
}

// SplitPayloads splits a received line into individual payloads.
// Readers may batch several scans on one line separated by whitespace.
func SplitPayloads(line string) []string {
	return strings.Fields(line)
}
