// Package widget holds the front-end independent state of the chat widget and the
// unanswered-questions listing. Renderers in pkg/channels draw from it.
package widget

import (
	"sync"

	"github.com/dhawanitbhatnagar/chatbot-app/pkg/attachment"
	"github.com/dhawanitbhatnagar/chatbot-app/pkg/dispatcher"
	"github.com/dhawanitbhatnagar/chatbot-app/pkg/logger"
	"github.com/dhawanitbhatnagar/chatbot-app/pkg/transcript"
)

// DefaultMarker is the document-level class present while the widget is open.
const DefaultMarker = "show-chatbot"

// VisibilityEffect applies the open/closed state outside the view itself, e.g. a body class.
type VisibilityEffect interface {
	SetOpen(open bool)
}

// Scroller keeps the newest message in sight.
type Scroller interface {
	ScrollToLatest()
}

// ScrollFunc adapts a plain function to Scroller.
type ScrollFunc func()

func (f ScrollFunc) ScrollToLatest() { f() }

// Marker is a VisibilityEffect that only remembers whether its class is set.
type Marker struct {
	name string

	mu     sync.RWMutex
	active bool
}

func NewMarker(name string) *Marker {
	if name == "" {
		name = DefaultMarker
	}
	return &Marker{name: name}
}

func (m *Marker) Name() string { return m.name }

func (m *Marker) SetOpen(open bool) {
	m.mu.Lock()
	m.active = open
	m.mu.Unlock()
}

func (m *Marker) Active() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Class returns the marker name while active and "" otherwise.
func (m *Marker) Class() string {
	if m.Active() {
		return m.name
	}
	return ""
}

type Options struct {
	SessionID string
	// Dispatcher, if nil, is built from Backend.
	Dispatcher *dispatcher.Dispatcher
	Backend    dispatcher.Backend
	Visibility VisibilityEffect
	Scroller   Scroller
	StartOpen  bool
}

// Snapshot is what a renderer needs to draw the view at one instant.
type Snapshot struct {
	SessionID string
	Messages  []transcript.Message
	Pending   *attachment.Attachment
	Filter    attachment.Category
	Open      bool
	State     dispatcher.State
}

// View ties a dispatcher to its transcript, attachment selector and visibility.
type View struct {
	sessionID  string
	dispatcher *dispatcher.Dispatcher
	visibility VisibilityEffect
	scroller   Scroller

	mu          sync.Mutex
	open        bool
	unsubscribe func()
	torn        bool
}

func New(opts Options) *View {
	d := opts.Dispatcher
	if d == nil {
		d = dispatcher.New(dispatcher.Options{
			Backend:   opts.Backend,
			SessionID: opts.SessionID,
		})
	}

	v := &View{
		sessionID:  opts.SessionID,
		dispatcher: d,
		visibility: opts.Visibility,
		scroller:   opts.Scroller,
		open:       opts.StartOpen,
	}
	if v.sessionID == "" {
		v.sessionID = d.SessionID()
	}
	if v.visibility == nil {
		v.visibility = NewMarker(DefaultMarker)
	}

	v.unsubscribe = d.Transcript().Subscribe(func(int, transcript.Message) {
		if v.scroller != nil {
			v.scroller.ScrollToLatest()
		}
	})
	v.visibility.SetOpen(v.open)

	return v
}

func (v *View) SessionID() string                  { return v.sessionID }
func (v *View) Dispatcher() *dispatcher.Dispatcher { return v.dispatcher }
func (v *View) Transcript() *transcript.Transcript { return v.dispatcher.Transcript() }
func (v *View) Selector() *attachment.Selector     { return v.dispatcher.Selector() }
func (v *View) Visibility() VisibilityEffect       { return v.visibility }

func (v *View) Open()   { v.setOpen(true) }
func (v *View) Close()  { v.setOpen(false) }
func (v *View) Toggle() { v.setOpen(!v.IsOpen()) }

func (v *View) IsOpen() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.open
}

func (v *View) setOpen(open bool) {
	v.mu.Lock()
	if v.torn {
		v.mu.Unlock()
		return
	}
	v.open = open
	v.mu.Unlock()

	v.visibility.SetOpen(open)
}

// Send composes and sends text, together with any pending attachment, atomically.
func (v *View) Send(text string) bool {
	return v.dispatcher.SendText(text)
}

func (v *View) Snapshot() Snapshot {
	return Snapshot{
		SessionID: v.sessionID,
		Messages:  v.Transcript().Messages(),
		Pending:   v.Selector().Pending(),
		Filter:    v.Selector().Filter(),
		Open:      v.IsOpen(),
		State:     v.dispatcher.State(),
	}
}

// Teardown ends the view: outstanding replies are ignored, the scroller is detached
// and the visibility marker is cleared. It is safe to call more than once.
func (v *View) Teardown() {
	v.mu.Lock()
	if v.torn {
		v.mu.Unlock()
		return
	}
	v.torn = true
	v.open = false
	unsubscribe := v.unsubscribe
	v.mu.Unlock()

	v.dispatcher.Close()
	if unsubscribe != nil {
		unsubscribe()
	}
	v.visibility.SetOpen(false)

	logger.DebugCF("widget", "View torn down", map[string]interface{}{"session_id": v.sessionID})
}
