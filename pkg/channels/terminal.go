package channels

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/dhawanitbhatnagar/chatbot-app/pkg/attachment"
	"github.com/dhawanitbhatnagar/chatbot-app/pkg/dispatcher"
	"github.com/dhawanitbhatnagar/chatbot-app/pkg/logger"
	"github.com/dhawanitbhatnagar/chatbot-app/pkg/transcript"
	"github.com/dhawanitbhatnagar/chatbot-app/pkg/widget"
)

const (
	pageChat       = "chat"
	pageLauncher   = "launcher"
	pageUnanswered = "unanswered"
)

// TerminalChannel draws the widget full-screen with tview. Ctrl+T plays the role of
// the launcher button.
type TerminalChannel struct {
	*BaseChannel
	view      *widget.View
	questions widget.QuestionSource
	cmd       *commander

	app     *tview.Application
	pages   *tview.Pages
	header  *tview.TextView
	log     *tview.TextView
	pending *tview.TextView
	status  *tview.TextView
	input   *tview.InputField
	table   *tview.Table

	// queue hands a redraw to the UI goroutine; redrawQueued keeps at most one pending.
	queue        func(func())
	redrawQueued atomic.Bool

	ctx      context.Context
	done     chan struct{}
	stopOnce sync.Once
}

func NewTerminalChannel(sessionID string, backend Backend) *TerminalChannel {
	c := &TerminalChannel{
		BaseChannel: NewBaseChannel("terminal"),
		questions:   backend,
		ctx:         context.Background(),
		done:        make(chan struct{}),
	}
	c.build()
	c.queue = func(f func()) { c.app.QueueUpdateDraw(f) }
	c.view = widget.New(widget.Options{
		SessionID:  sessionID,
		Backend:    backend,
		Visibility: c,
		Scroller:   widget.ScrollFunc(c.refresh),
		StartOpen:  true,
	})
	c.cmd = newCommander(c.view)
	c.render()
	return c
}

func (c *TerminalChannel) View() *widget.View { return c.view }

func (c *TerminalChannel) Done() <-chan struct{} { return c.done }

func (c *TerminalChannel) build() {
	c.app = tview.NewApplication()

	c.header = tview.NewTextView().SetDynamicColors(true)

	c.log = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	c.log.SetBorder(true).SetTitle(" Chat ")

	c.pending = tview.NewTextView().SetDynamicColors(true)
	c.status = tview.NewTextView().SetDynamicColors(true)

	c.input = tview.NewInputField().
		SetLabel("> ").
		SetFieldWidth(0).
		SetPlaceholder("Type a message, or /help")
	c.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		line := c.input.GetText()
		c.input.SetText("")
		c.handle(line)
	})

	chat := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(c.header, 1, 0, false).
		AddItem(c.log, 0, 1, false).
		AddItem(c.pending, 1, 0, false).
		AddItem(c.status, 1, 0, false).
		AddItem(c.input, 1, 0, true)

	launcher := tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetText("\n\nChat is closed. Press Ctrl+T to open it, Ctrl+C to quit.")

	c.table = tview.NewTable().
		SetFixed(1, 0).
		SetSelectable(true, false)
	c.table.SetBorder(true).SetTitle(" Unanswered questions (Esc to go back) ")
	c.table.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEscape {
			c.pages.SwitchToPage(pageChat)
			c.app.SetFocus(c.input)
		}
	})

	c.pages = tview.NewPages().
		AddPage(pageLauncher, launcher, true, false).
		AddPage(pageUnanswered, c.table, true, false).
		AddPage(pageChat, chat, true, true)

	c.app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() == tcell.KeyCtrlT {
			c.view.Toggle()
			return nil
		}
		return ev
	})
	c.app.SetRoot(c.pages, true).SetFocus(c.input)
}

// SetOpen switches between the chat and the launcher page.
func (c *TerminalChannel) SetOpen(bool) {
	c.refresh()
}

// refresh redraws from the current snapshot. Every redraw is complete, so changes
// arriving while one is queued are picked up by it.
func (c *TerminalChannel) refresh() {
	if !c.IsRunning() {
		c.render()
		return
	}
	if !c.redrawQueued.CompareAndSwap(false, true) {
		return
	}
	go func() {
		if !c.IsRunning() {
			c.redrawQueued.Store(false)
			return
		}
		c.queue(func() {
			c.redrawQueued.Store(false)
			c.render()
		})
	}()
}

func (c *TerminalChannel) render() {
	if c.view == nil {
		return
	}
	snap := c.view.Snapshot()

	c.header.SetText(fmt.Sprintf("[::b]Chatbot[::-]  [gray]session %s[-]  %s", snap.SessionID, stateLabel(snap.State)))

	c.log.Clear()
	for _, m := range snap.Messages {
		writeTerminalMessage(c.log, m)
	}
	c.log.ScrollToEnd()

	if snap.Pending != nil {
		c.pending.SetText("[yellow]attached:[-] " + tview.Escape(attachment.RenderText(snap.Pending)) + "  [gray](/detach to remove)[-]")
	} else {
		c.pending.SetText("")
	}

	front, _ := c.pages.GetFrontPage()
	switch {
	case !snap.Open && front != pageLauncher:
		c.pages.SwitchToPage(pageLauncher)
	case snap.Open && front == pageLauncher:
		c.pages.SwitchToPage(pageChat)
		c.app.SetFocus(c.input)
	}
}

func writeTerminalMessage(w *tview.TextView, m transcript.Message) {
	who := "[green::b]you[-::-]"
	if m.Sender == transcript.Bot {
		who = "[aqua::b]bot[-::-]"
	}
	fmt.Fprintf(w, "[gray]%s[-] %s\n", m.Time.Format("15:04"), who)
	if m.Attachment != nil {
		fmt.Fprintf(w, "  [yellow]%s[-]\n", tview.Escape(attachment.RenderText(m.Attachment)))
	}
	if m.Text != "" {
		fmt.Fprintf(w, "  %s\n", tview.Escape(m.Text))
	}
	fmt.Fprintln(w)
}

func stateLabel(s dispatcher.State) string {
	if s == dispatcher.Awaiting || s == dispatcher.Sending {
		return "[yellow]waiting for reply...[-]"
	}
	return ""
}

// handle runs on the UI goroutine.
func (c *TerminalChannel) handle(line string) {
	res, status, err := c.cmd.run(line)
	if err != nil {
		c.status.SetText("[red]" + tview.Escape(err.Error()) + "[-]")
		return
	}
	c.status.SetText(tview.Escape(status))

	switch res {
	case lineQuit:
		c.app.Stop()
	case lineUnanswered:
		go c.showUnanswered()
	case lineIgnored:
		c.status.SetText("[gray]Nothing to send[-]")
	}
	c.render()
}

func (c *TerminalChannel) showUnanswered() {
	c.app.QueueUpdateDraw(func() {
		c.table.Clear()
		c.table.SetCell(0, 0, tview.NewTableCell("Loading..."))
		c.pages.SwitchToPage(pageUnanswered)
		c.app.SetFocus(c.table)
	})

	l := widget.NewListing(c.questions)
	_ = l.Load(c.ctx)

	c.app.QueueUpdateDraw(func() {
		fillQuestionsTable(c.table, l)
	})
}

func fillQuestionsTable(t *tview.Table, l *widget.Listing) {
	t.Clear()
	if l.State() == widget.Failed {
		t.SetCell(0, 0, tview.NewTableCell(l.ErrorMessage()).SetTextColor(tcell.ColorRed))
		return
	}

	for col, h := range []string{"#", "Question", "Image", "Update"} {
		t.SetCell(0, col, tview.NewTableCell(h).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false))
	}
	for i, r := range l.Rows() {
		img := r.ImageURL
		if img == "" {
			img = "-"
		}
		t.SetCell(i+1, 0, tview.NewTableCell(fmt.Sprint(r.Index)))
		t.SetCell(i+1, 1, tview.NewTableCell(r.Question).SetExpansion(1))
		t.SetCell(i+1, 2, tview.NewTableCell(img))
		t.SetCell(i+1, 3, tview.NewTableCell(r.EditLink))
	}
}

func (c *TerminalChannel) Start(ctx context.Context) error {
	c.ctx = ctx
	c.setRunning(true)
	logger.DebugCF("terminal", "Terminal UI starting", map[string]interface{}{"session_id": c.view.SessionID()})

	go func() {
		defer c.finish()
		if err := c.app.Run(); err != nil {
			logger.ErrorCF("terminal", "Terminal UI stopped with error", map[string]interface{}{"error": err.Error()})
		}
	}()
	return nil
}

func (c *TerminalChannel) finish() {
	c.stopOnce.Do(func() {
		c.setRunning(false)
		c.view.Teardown()
		close(c.done)
	})
}

func (c *TerminalChannel) Stop(ctx context.Context) error {
	if !c.IsRunning() {
		c.finish()
		return nil
	}
	c.app.Stop()
	select {
	case <-c.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
