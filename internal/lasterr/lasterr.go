// Package lasterr holds the most recent failure message for callers that
// only receive status codes.
package lasterr

import (
	"fmt"
	"sync"
)

// Slot is a mutex guarded optional message. The zero value is empty and
// ready to use.
type Slot struct {
	mu  sync.Mutex
	msg string
	set bool
}

// Set replaces any pending message.
func (s *Slot) Set(message string) {
	s.mu.Lock()
	s.msg, s.set = message, true
	s.mu.Unlock()
}

func (s *Slot) Setf(format string, args ...any) {
	s.Set(fmt.Sprintf(format, args...))
}

// SetError records err.Error(); a nil err clears the slot.
func (s *Slot) SetError(err error) {
	if err == nil {
		s.Clear()
		return
	}
	s.Set(err.Error())
}

// Get returns the pending message, or "" when there is none. It does not
// clear the slot.
func (s *Slot) Get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.msg
}

// Pending reports whether a message has been set since the last Clear.
func (s *Slot) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set
}

func (s *Slot) Clear() {
	s.mu.Lock()
	s.msg, s.set = "", false
	s.mu.Unlock()
}
