package channels

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhawanitbhatnagar/chatbot-app/pkg/attachment"
	"github.com/dhawanitbhatnagar/chatbot-app/pkg/chatbot"
	"github.com/dhawanitbhatnagar/chatbot-app/pkg/widget"
)

func newTestCommander(be *stubBackend) (*commander, *[]string) {
	var copied []string
	v := widget.New(widget.Options{SessionID: "sess-cli", Backend: be, StartOpen: true})
	cmd := newCommander(v)
	cmd.copy = func(s string) error {
		copied = append(copied, s)
		return nil
	}
	return cmd, &copied
}

func writePNG(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cat.png")
	require.NoError(t, os.WriteFile(path, pngHeader, 0o600))
	return path
}

func TestCommanderSendsPlainText(t *testing.T) {
	cmd, _ := newTestCommander(&stubBackend{reply: "hello"})

	res, _, err := cmd.run("hi there")
	require.NoError(t, err)
	assert.Equal(t, lineSent, res)

	res, _, err = cmd.run("   ")
	require.NoError(t, err)
	assert.Equal(t, lineIgnored, res)

	cmd.view.Dispatcher().Wait()
	assert.Equal(t, 2, cmd.view.Transcript().Len())
}

func TestCommanderDoubleSlashSendsLiteralSlash(t *testing.T) {
	cmd, _ := newTestCommander(&stubBackend{reply: "ok"})

	res, _, err := cmd.run("//etc/hosts is missing")
	require.NoError(t, err)
	assert.Equal(t, lineSent, res)
	cmd.view.Dispatcher().Wait()

	first, ok := cmd.view.Transcript().At(0)
	require.True(t, ok)
	assert.Equal(t, "/etc/hosts is missing", first.Text)

	_, _, err = cmd.run("/etc/hosts is missing")
	assert.ErrorIs(t, err, errUnknownCommand)
	assert.Contains(t, err.Error(), "//")
}

func TestCommanderAttachAndDetach(t *testing.T) {
	cmd, _ := newTestCommander(&stubBackend{reply: "ok"})
	path := writePNG(t)

	res, status, err := cmd.run("/attach " + path)
	require.NoError(t, err)
	assert.Equal(t, lineHandled, res)
	assert.Contains(t, status, "[image] cat.png")
	require.NotNil(t, cmd.view.Selector().Pending())

	_, _, err = cmd.run("/detach")
	require.NoError(t, err)
	assert.Nil(t, cmd.view.Selector().Pending())
}

func TestCommanderAttachWrongCategory(t *testing.T) {
	cmd, _ := newTestCommander(&stubBackend{reply: "ok"})
	path := writePNG(t)

	_, _, err := cmd.run("/attach " + path + " video")
	assert.ErrorIs(t, err, attachment.ErrNotAccepted)
	assert.Nil(t, cmd.view.Selector().Pending())

	_, _, err = cmd.run("/attach " + path + " spreadsheet")
	assert.Error(t, err)

	_, _, err = cmd.run("/attach")
	assert.Error(t, err)
}

func TestCommanderVisibility(t *testing.T) {
	cmd, _ := newTestCommander(&stubBackend{reply: "ok"})

	_, _, err := cmd.run("/close")
	require.NoError(t, err)
	assert.False(t, cmd.view.IsOpen())

	_, _, err = cmd.run("/toggle")
	require.NoError(t, err)
	assert.True(t, cmd.view.IsOpen())
}

func TestCommanderCopy(t *testing.T) {
	cmd, copied := newTestCommander(&stubBackend{reply: "copy me"})

	_, _, err := cmd.run("/copy")
	assert.Error(t, err)

	_, _, err = cmd.run("question")
	require.NoError(t, err)
	cmd.view.Dispatcher().Wait()

	_, status, err := cmd.run("/copy")
	require.NoError(t, err)
	assert.Equal(t, "Copied last reply", status)
	assert.Equal(t, []string{"copy me"}, *copied)

	cmd.copy = func(string) error { return errors.New("no clipboard utility") }
	_, _, err = cmd.run("/copy")
	assert.Error(t, err)
}

func TestCommanderMisc(t *testing.T) {
	cmd, _ := newTestCommander(&stubBackend{reply: "ok"})

	_, status, err := cmd.run("/session")
	require.NoError(t, err)
	assert.Equal(t, "Session sess-cli", status)

	res, _, err := cmd.run("/unanswered")
	require.NoError(t, err)
	assert.Equal(t, lineUnanswered, res)

	res, _, err = cmd.run("/QUIT")
	require.NoError(t, err)
	assert.Equal(t, lineQuit, res)

	_, status, err = cmd.run("/help")
	require.NoError(t, err)
	assert.Contains(t, status, "/attach")

	_, _, err = cmd.run("/bogus")
	assert.ErrorIs(t, err, errUnknownCommand)
}

func TestWriteUnanswered(t *testing.T) {
	var buf bytes.Buffer
	err := WriteUnanswered(context.Background(), &buf, &stubBackend{questions: []chatbot.Question{
		{ID: "64f0c2", Question: "Where is my order?"},
		{ID: "7", Question: "What is this?", ImageURL: "http://img/1.png"},
	}})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "#"))
	assert.Contains(t, lines[1], "Where is my order?")
	assert.Contains(t, lines[1], "/unanswered/updates/64f0c2")
	assert.Contains(t, lines[2], "http://img/1.png")
}

func TestWriteUnansweredFailure(t *testing.T) {
	var buf bytes.Buffer
	err := WriteUnanswered(context.Background(), &buf, &stubBackend{qErr: errors.New("chatbot: 500 Internal Server Error")})
	require.Error(t, err)
	assert.Equal(t, "chatbot: 500 Internal Server Error\n", buf.String())
}

func TestTerminalRendersTranscript(t *testing.T) {
	c := NewTerminalChannel("sess-tui", &stubBackend{reply: "from the bot"})
	defer c.View().Teardown()

	require.True(t, c.View().Send("from me"))
	c.View().Dispatcher().Wait()
	c.render()

	text := c.log.GetText(true)
	assert.Contains(t, text, "from me")
	assert.Contains(t, text, "from the bot")

	front, _ := c.pages.GetFrontPage()
	assert.Equal(t, pageChat, front)

	c.View().Close()
	front, _ = c.pages.GetFrontPage()
	assert.Equal(t, pageLauncher, front)
}

func TestTerminalCoalescesRedraws(t *testing.T) {
	c := NewTerminalChannel("sess-tui", &stubBackend{reply: "ok"})
	defer c.View().Teardown()

	var mu sync.Mutex
	var queued []func()
	c.queue = func(f func()) {
		mu.Lock()
		queued = append(queued, f)
		mu.Unlock()
	}
	pending := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(queued)
	}

	// running, but nothing drains the queue, as after the UI loop has exited
	c.setRunning(true)
	defer c.setRunning(false)

	for i := 0; i < 500; i++ {
		c.refresh()
	}
	assert.Eventually(t, func() bool { return pending() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, pending())

	mu.Lock()
	redraw := queued[0]
	mu.Unlock()
	redraw()

	c.refresh()
	assert.Eventually(t, func() bool { return pending() == 2 }, time.Second, 5*time.Millisecond)
}
