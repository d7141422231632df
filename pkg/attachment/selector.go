package attachment

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotAccepted is returned when the picker filter excludes a file's MIME type.
var ErrNotAccepted = errors.New("file type not accepted by picker")

// Selector holds at most one pending attachment.
type Selector struct {
	mu      sync.Mutex
	filter  Category
	pending *Attachment
}

func NewSelector() *Selector {
	return &Selector{}
}

// Request constrains subsequent selections to cat's allow-list. None lifts the filter.
func (s *Selector) Request(cat Category) {
	s.mu.Lock()
	s.filter = cat
	s.mu.Unlock()
}

func (s *Selector) Filter() Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// Accepts reports whether the current filter lets mime through.
func (s *Selector) Accepts(mime string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter == None || s.filter.Allows(mime)
}

// Select stages a as the pending attachment, replacing any earlier one. A non-None
// requested category is the user's explicit choice and overrides the MIME-derived one.
// Size is not checked.
func (s *Selector) Select(a *Attachment, requested Category) error {
	if a == nil {
		return fmt.Errorf("attachment: nil file")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.filter != None && !s.filter.Allows(a.MIMEType) {
		return fmt.Errorf("%w: %s is not a %s type", ErrNotAccepted, a.MIMEType, s.filter)
	}

	staged := *a
	switch {
	case requested != None:
		staged.Category = requested
	case staged.Category == None:
		staged.Category = CategoryFromMIME(staged.MIMEType)
	}
	s.pending = &staged
	return nil
}

// Clear discards the pending attachment without sending it.
func (s *Selector) Clear() {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
}

func (s *Selector) Pending() *Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Take returns the pending attachment and clears it in one step.
func (s *Selector) Take() *Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.pending
	s.pending = nil
	return a
}
