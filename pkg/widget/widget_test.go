package widget

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhawanitbhatnagar/chatbot-app/pkg/attachment"
	"github.com/dhawanitbhatnagar/chatbot-app/pkg/chatbot"
	"github.com/dhawanitbhatnagar/chatbot-app/pkg/dispatcher"
	"github.com/dhawanitbhatnagar/chatbot-app/pkg/transcript"
)

type recordingEffect struct {
	mu    sync.Mutex
	calls []bool
}

func (r *recordingEffect) SetOpen(open bool) {
	r.mu.Lock()
	r.calls = append(r.calls, open)
	r.mu.Unlock()
}

func (r *recordingEffect) Calls() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.calls...)
}

type replyBackend struct {
	reply string
	hold  chan struct{}
}

func (b *replyBackend) Query(context.Context, string, string) (string, error) {
	if b.hold != nil {
		<-b.hold
	}
	return b.reply, nil
}

func (b *replyBackend) Upload(context.Context, *attachment.Attachment, string, string) (string, error) {
	if b.hold != nil {
		<-b.hold
	}
	return b.reply, nil
}

func TestVisibilityFollowsOpenClose(t *testing.T) {
	fx := &recordingEffect{}
	v := New(Options{SessionID: "s", Backend: &replyBackend{reply: "ok"}, Visibility: fx})

	assert.False(t, v.IsOpen())
	v.Open()
	assert.True(t, v.IsOpen())
	v.Toggle()
	assert.False(t, v.IsOpen())
	v.Toggle()
	v.Close()

	assert.Equal(t, []bool{false, true, false, true, false}, fx.Calls())
}

func TestMarkerClass(t *testing.T) {
	m := NewMarker("")
	v := New(Options{Backend: &replyBackend{reply: "ok"}, Visibility: m, StartOpen: true})

	assert.Equal(t, DefaultMarker, m.Class())
	v.Close()
	assert.Empty(t, m.Class())
	assert.Equal(t, "show-chatbot", m.Name())
}

func TestScrollsOnEveryAppend(t *testing.T) {
	var scrolls atomic.Int32
	v := New(Options{
		SessionID: "s",
		Backend:   &replyBackend{reply: "hello"},
		Scroller:  ScrollFunc(func() { scrolls.Add(1) }),
	})

	require.True(t, v.Send("hi"))
	v.Dispatcher().Wait()

	assert.Equal(t, int32(2), scrolls.Load())
}

func TestSnapshot(t *testing.T) {
	v := New(Options{SessionID: "sess-9", Backend: &replyBackend{reply: "hello"}})
	v.Open()
	require.NoError(t, v.Selector().Select(&attachment.Attachment{Name: "a.mp3", MIMEType: "audio/mpeg", Data: []byte{1}}, attachment.None))

	snap := v.Snapshot()
	assert.Equal(t, "sess-9", snap.SessionID)
	assert.True(t, snap.Open)
	require.NotNil(t, snap.Pending)
	assert.Equal(t, attachment.Audio, snap.Pending.Category)
	assert.Empty(t, snap.Messages)
}

func TestTeardownIgnoresLateReplies(t *testing.T) {
	hold := make(chan struct{})
	fx := &recordingEffect{}
	var scrolls atomic.Int32
	d := dispatcher.New(dispatcher.Options{Backend: &replyBackend{reply: "late", hold: hold}, SessionID: "s"})
	v := New(Options{Dispatcher: d, Visibility: fx, Scroller: ScrollFunc(func() { scrolls.Add(1) }), StartOpen: true})

	require.True(t, v.Send("question"))
	v.Teardown()
	v.Teardown()
	close(hold)
	d.Wait()

	assert.Equal(t, 1, v.Transcript().Len())
	assert.Equal(t, int32(1), scrolls.Load())
	assert.False(t, v.IsOpen())
	calls := fx.Calls()
	assert.False(t, calls[len(calls)-1])

	v.Open()
	assert.False(t, v.IsOpen())
}

type fakeSource struct {
	calls atomic.Int32
	qs    []chatbot.Question
	err   error
}

func (f *fakeSource) UnansweredQuestions(context.Context) ([]chatbot.Question, error) {
	f.calls.Add(1)
	return f.qs, f.err
}

func TestListingRows(t *testing.T) {
	src := &fakeSource{qs: []chatbot.Question{
		{ID: "64f0c2", Question: "Where is my order?"},
		{ID: "a b", Question: "What is this?", ImageURL: "http://img/1.png"},
	}}
	l := NewListing(src)
	assert.Equal(t, Loading, l.State())

	require.NoError(t, l.Load(context.Background()))
	assert.Equal(t, Loaded, l.State())

	rows := l.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].Index)
	assert.Equal(t, "/unanswered/updates/64f0c2", rows[0].EditLink)
	assert.Equal(t, 2, rows[1].Index)
	assert.Equal(t, "/unanswered/updates/a%20b", rows[1].EditLink)
	assert.Equal(t, "http://img/1.png", rows[1].ImageURL)
}

func TestListingEmptyIsNotAnError(t *testing.T) {
	l := NewListing(&fakeSource{qs: []chatbot.Question{}})
	require.NoError(t, l.Load(context.Background()))
	assert.Equal(t, Loaded, l.State())
	assert.Empty(t, l.Rows())
	assert.Empty(t, l.ErrorMessage())
}

func TestListingFailure(t *testing.T) {
	src := &fakeSource{err: errors.New("chatbot: 503 Service Unavailable")}
	l := NewListing(src)

	err := l.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, Failed, l.State())
	assert.Equal(t, "chatbot: 503 Service Unavailable", l.ErrorMessage())
	assert.Empty(t, l.Rows())
}

func TestListingLoadsOnce(t *testing.T) {
	src := &fakeSource{qs: []chatbot.Question{{ID: "1", Question: "q"}}}
	l := NewListing(src)

	require.NoError(t, l.Load(context.Background()))
	require.NoError(t, l.Load(context.Background()))
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestBotMessagesReachTranscript(t *testing.T) {
	v := New(Options{Backend: &replyBackend{reply: "hello"}})
	require.True(t, v.Send("hi"))
	v.Dispatcher().Wait()

	last, ok := v.Transcript().Last(transcript.Bot)
	require.True(t, ok)
	assert.Equal(t, "hello", last.Text)
}

func TestSendFromStateObserverKeepsBothMessages(t *testing.T) {
	var v *View
	var fired, nestedAccepted atomic.Bool
	d := dispatcher.New(dispatcher.Options{
		Backend:   &replyBackend{reply: "ok"},
		SessionID: "s",
		OnState: func(s dispatcher.State) {
			if s == dispatcher.Sending && fired.CompareAndSwap(false, true) {
				nestedAccepted.Store(v.Send("second"))
			}
		},
	})
	v = New(Options{SessionID: "s", Dispatcher: d})

	require.True(t, v.Send("first"))
	d.Wait()

	assert.True(t, nestedAccepted.Load())
	var users []string
	bots := 0
	for _, m := range v.Transcript().Messages() {
		if m.Sender == transcript.User {
			users = append(users, m.Text)
		} else {
			bots++
		}
	}
	assert.ElementsMatch(t, []string{"first", "second"}, users)
	assert.Equal(t, 2, bots)
}
