package channels

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ergochat/readline"

	"github.com/dhawanitbhatnagar/chatbot-app/pkg/attachment"
	"github.com/dhawanitbhatnagar/chatbot-app/pkg/logger"
	"github.com/dhawanitbhatnagar/chatbot-app/pkg/transcript"
	"github.com/dhawanitbhatnagar/chatbot-app/pkg/widget"
)

const (
	consolePrompt       = "you> "
	consoleHiddenPrompt = "(hidden) you> "
)

// ConsoleChannel is the line-mode widget for pipes and dumb terminals.
type ConsoleChannel struct {
	*BaseChannel
	view        *widget.View
	questions   widget.QuestionSource
	cmd         *commander
	historyFile string

	mu          sync.Mutex
	rl          *readline.Instance
	open        atomic.Bool
	unsubscribe func()
	done        chan struct{}
	stopOnce    sync.Once
}

func NewConsoleChannel(sessionID string, backend Backend, historyFile string) *ConsoleChannel {
	c := &ConsoleChannel{
		BaseChannel: NewBaseChannel("console"),
		questions:   backend,
		historyFile: historyFile,
		done:        make(chan struct{}),
	}
	c.view = widget.New(widget.Options{
		SessionID:  sessionID,
		Backend:    backend,
		Visibility: c,
		StartOpen:  true,
	})
	c.cmd = newCommander(c.view)
	return c
}

func (c *ConsoleChannel) View() *widget.View { return c.view }

// Done is closed once the user quits or input ends.
func (c *ConsoleChannel) Done() <-chan struct{} { return c.done }

func (c *ConsoleChannel) SetOpen(open bool) {
	c.open.Store(open)
	c.mu.Lock()
	rl := c.rl
	c.mu.Unlock()
	if rl != nil {
		rl.SetPrompt(c.prompt())
	}
}

func (c *ConsoleChannel) prompt() string {
	if c.open.Load() {
		return consolePrompt
	}
	return consoleHiddenPrompt
}

func (c *ConsoleChannel) Start(ctx context.Context) error {
	rl, err := readline.NewFromConfig(&readline.Config{
		Prompt:          c.prompt(),
		HistoryFile:     c.historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("console: init readline: %w", err)
	}

	c.mu.Lock()
	c.rl = rl
	c.mu.Unlock()

	c.unsubscribe = c.view.Transcript().Subscribe(func(_ int, m transcript.Message) {
		if m.Sender != transcript.Bot {
			return
		}
		c.printf("bot> %s\n", m.Text)
	})

	c.setRunning(true)
	logger.DebugCF("console", "Console started", map[string]interface{}{"session_id": c.view.SessionID()})

	c.printf("Chatbot session %s. Type /help for commands.\n", c.view.SessionID())
	go c.loop(ctx, rl)
	return nil
}

func (c *ConsoleChannel) loop(ctx context.Context, rl *readline.Instance) {
	defer c.finish()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return
			}
			continue
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.WarnCF("console", "Input closed", map[string]interface{}{"error": err.Error()})
			}
			return
		}

		if !c.handle(ctx, line) {
			return
		}
	}
}

// handle runs one line and reports whether the loop should continue.
func (c *ConsoleChannel) handle(ctx context.Context, line string) bool {
	pending := c.view.Selector().Pending()
	res, status, err := c.cmd.run(line)
	if err != nil {
		c.printf("error: %v\n", err)
		return true
	}

	switch res {
	case lineQuit:
		return false
	case lineSent:
		if pending != nil {
			c.printf("sent %s\n", attachment.RenderText(pending))
		}
	case lineUnanswered:
		var buf strings.Builder
		_ = WriteUnanswered(ctx, &buf, c.questions)
		c.printf("%s", buf.String())
	}
	if status != "" {
		c.printf("%s\n", status)
	}
	return true
}

func (c *ConsoleChannel) printf(format string, args ...interface{}) {
	c.mu.Lock()
	rl := c.rl
	c.mu.Unlock()
	if rl == nil {
		return
	}
	_, _ = fmt.Fprintf(rl, format, args...)
}

func (c *ConsoleChannel) finish() {
	c.stopOnce.Do(func() {
		c.setRunning(false)
		c.view.Teardown()
		if c.unsubscribe != nil {
			c.unsubscribe()
		}
		close(c.done)
	})
}

func (c *ConsoleChannel) Stop(ctx context.Context) error {
	c.mu.Lock()
	rl := c.rl
	c.mu.Unlock()

	var err error
	if rl != nil {
		err = rl.Close()
	}
	c.finish()
	return err
}
