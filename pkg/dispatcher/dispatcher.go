// Package dispatcher turns the composed text and pending attachment into a backend
// request and reconciles the reply with the transcript.
package dispatcher

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dhawanitbhatnagar/chatbot-app/pkg/attachment"
	"github.com/dhawanitbhatnagar/chatbot-app/pkg/logger"
	"github.com/dhawanitbhatnagar/chatbot-app/pkg/transcript"
)

// Backend is the chatbot API as the dispatcher needs it.
type Backend interface {
	Query(ctx context.Context, query, sessionID string) (string, error)
	Upload(ctx context.Context, a *attachment.Attachment, query, sessionID string) (string, error)
}

type State int

const (
	Idle State = iota
	Composing
	Sending
	Awaiting
	Resolved
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Composing:
		return "composing"
	case Sending:
		return "sending"
	case Awaiting:
		return "awaiting"
	case Resolved:
		return "resolved"
	default:
		return "unknown"
	}
}

type Options struct {
	Backend    Backend
	Transcript *transcript.Transcript
	Selector   *attachment.Selector
	SessionID  string
	// Timeout bounds a single request. Zero leaves it to the backend client.
	Timeout time.Duration
	// OnState, if set, observes every state transition.
	OnState func(State)
}

// Dispatcher sends at most what the user composed, one request per Send. Sends are
// not queued: a second Send while the first is outstanding issues its own request and
// replies land in arrival order.
type Dispatcher struct {
	backend    Backend
	transcript *transcript.Transcript
	selector   *attachment.Selector
	sessionID  string
	timeout    time.Duration
	onState    func(State)

	mu       sync.Mutex
	text     string
	state    State
	inFlight int
	closed   bool

	wg  sync.WaitGroup
	seq atomic.Uint64
}

func New(opts Options) *Dispatcher {
	d := &Dispatcher{
		backend:    opts.Backend,
		transcript: opts.Transcript,
		selector:   opts.Selector,
		sessionID:  opts.SessionID,
		timeout:    opts.Timeout,
		onState:    opts.OnState,
	}
	if d.transcript == nil {
		d.transcript = transcript.New()
	}
	if d.selector == nil {
		d.selector = attachment.NewSelector()
	}
	return d
}

func (d *Dispatcher) Transcript() *transcript.Transcript { return d.transcript }
func (d *Dispatcher) Selector() *attachment.Selector     { return d.selector }
func (d *Dispatcher) SessionID() string                  { return d.sessionID }

// SetText replaces the text being composed.
func (d *Dispatcher) SetText(s string) {
	d.mu.Lock()
	d.text = s
	next := d.restingStateLocked()
	d.mu.Unlock()
	d.transition(next)
}

func (d *Dispatcher) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.text
}

func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Dispatcher) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inFlight
}

// Send dispatches the composed message. It returns false, doing nothing, when there is
// neither text nor a pending attachment, or after Close.
func (d *Dispatcher) Send() bool {
	d.mu.Lock()
	return d.sendLocked(d.text)
}

// SendText sends text as the composed message in one step. Concurrent callers each
// get their own user message; an ignored call leaves the composed text as it was.
func (d *Dispatcher) SendText(text string) bool {
	d.mu.Lock()
	return d.sendLocked(text)
}

// sendLocked is entered with d.mu held and releases it.
func (d *Dispatcher) sendLocked(text string) bool {
	if d.closed {
		d.mu.Unlock()
		return false
	}
	// Take before the emptiness check: a concurrent Clear must not leave a request
	// with nothing in it.
	a := d.selector.Take()
	if strings.TrimSpace(text) == "" && a == nil {
		d.mu.Unlock()
		return false
	}
	d.text = ""
	d.inFlight++
	d.wg.Add(1)
	id := d.seq.Add(1)
	d.mu.Unlock()

	d.transition(Sending)

	// The user's message goes in before the request exists, so it always precedes its reply.
	if err := d.transcript.Append(transcript.NewUserMessage(text, a)); err != nil {
		logger.ErrorCF("dispatcher", "Could not append user message", map[string]interface{}{
			"request": id,
			"error":   err.Error(),
		})
	}

	d.transition(Awaiting)
	go d.resolve(id, text, a)
	return true
}

func (d *Dispatcher) resolve(id uint64, text string, a *attachment.Attachment) {
	defer d.wg.Done()

	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	reply := d.replyOrFallback(ctx, id, text, a)

	d.mu.Lock()
	d.inFlight--
	closed := d.closed
	d.mu.Unlock()

	if closed {
		logger.DebugCF("dispatcher", "Dropping reply for closed view", map[string]interface{}{"request": id})
		return
	}

	if err := d.transcript.Append(transcript.NewBotMessage(reply)); err != nil {
		logger.ErrorCF("dispatcher", "Could not append bot message", map[string]interface{}{
			"request": id,
			"error":   err.Error(),
		})
	}

	d.transition(Resolved)

	d.mu.Lock()
	next := d.restingStateLocked()
	d.mu.Unlock()
	d.transition(next)
}

// Close marks every outstanding request as ignorable. Requests are not aborted; their
// replies are discarded when they arrive.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	pending := d.inFlight
	d.mu.Unlock()

	if pending > 0 {
		logger.InfoCF("dispatcher", "Closed with requests outstanding", map[string]interface{}{"in_flight": pending})
	}
}

// Wait blocks until every request issued so far has resolved.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) restingStateLocked() State {
	switch {
	case d.inFlight > 0:
		return Awaiting
	case d.text != "" || d.selector.Pending() != nil:
		return Composing
	default:
		return Idle
	}
}

func (d *Dispatcher) transition(s State) {
	d.mu.Lock()
	changed := d.state != s
	d.state = s
	d.mu.Unlock()

	if changed && d.onState != nil {
		d.onState(s)
	}
}
