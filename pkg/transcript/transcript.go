package transcript

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dhawanitbhatnagar/chatbot-app/pkg/attachment"
)

// ErrEmptyMessage is returned for a message with neither text nor attachment.
var ErrEmptyMessage = errors.New("message has no text and no attachment")

type Sender string

const (
	User Sender = "user"
	Bot  Sender = "bot"
)

// Message is immutable once appended.
type Message struct {
	Text       string
	Sender     Sender
	Attachment *attachment.Attachment
	Time       time.Time
}

func NewUserMessage(text string, a *attachment.Attachment) Message {
	return Message{Text: text, Sender: User, Attachment: a, Time: time.Now()}
}

func NewBotMessage(text string) Message {
	return Message{Text: text, Sender: Bot, Time: time.Now()}
}

func (m Message) Validate() error {
	if strings.TrimSpace(m.Text) == "" && m.Attachment == nil {
		return ErrEmptyMessage
	}
	return nil
}

// Listener is told about every appended message along with its index.
type Listener func(index int, m Message)

// Transcript is an append-only log; insertion order is display order.
type Transcript struct {
	mu        sync.RWMutex
	messages  []Message
	listeners map[int]Listener
	nextID    int
}

func New() *Transcript {
	return &Transcript{listeners: make(map[int]Listener)}
}

// Append validates and appends m, then notifies listeners outside the lock.
func (t *Transcript) Append(m Message) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if m.Time.IsZero() {
		m.Time = time.Now()
	}

	t.mu.Lock()
	t.messages = append(t.messages, m)
	index := len(t.messages) - 1
	listeners := make([]Listener, 0, len(t.listeners))
	for _, l := range t.listeners {
		listeners = append(listeners, l)
	}
	t.mu.Unlock()

	for _, l := range listeners {
		l(index, m)
	}
	return nil
}

// Messages returns a copy of the log.
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Message(nil), t.messages...)
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

func (t *Transcript) At(i int) (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i < 0 || i >= len(t.messages) {
		return Message{}, false
	}
	return t.messages[i], true
}

// Last returns the most recent message sent by s.
func (t *Transcript) Last(s Sender) (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].Sender == s {
			return t.messages[i], true
		}
	}
	return Message{}, false
}

// Subscribe registers l and returns a function that removes it.
func (t *Transcript) Subscribe(l Listener) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = l
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.listeners, id)
			t.mu.Unlock()
		})
	}
}
