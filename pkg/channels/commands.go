package channels

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/atotto/clipboard"

	"github.com/dhawanitbhatnagar/chatbot-app/pkg/attachment"
	"github.com/dhawanitbhatnagar/chatbot-app/pkg/transcript"
	"github.com/dhawanitbhatnagar/chatbot-app/pkg/widget"
)

const helpText = `Commands:
  /attach <path> [image|video|audio|document]  stage a file for the next message
  /detach                                      drop the staged file
  /open, /close, /toggle                       show or hide the chat
  /copy                                        copy the last reply to the clipboard
  /session                                     print the session id
  /unanswered                                  list questions the bot could not answer
  /help                                        this text
  /quit                                        leave
Anything else is sent as a message; start it with // to send a leading /.`

type lineResult int

const (
	lineSent lineResult = iota
	lineIgnored
	lineHandled
	lineUnanswered
	lineQuit
)

var errUnknownCommand = errors.New("unknown command")

// commander interprets one input line against a view. Front-ends only decide how to
// show the outcome.
type commander struct {
	view *widget.View
	copy func(string) error
}

func newCommander(view *widget.View) *commander {
	return &commander{view: view, copy: clipboard.WriteAll}
}

// run returns what happened and a status line worth showing, if any.
func (c *commander) run(line string) (lineResult, string, error) {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "//") {
		// "//etc/hosts" sends "/etc/hosts".
		return c.send(strings.Replace(line, "/", "", 1))
	}
	if !strings.HasPrefix(trimmed, "/") {
		return c.send(line)
	}

	fields := strings.Fields(trimmed)
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "/attach":
		if len(args) == 0 {
			return lineHandled, "", fmt.Errorf("usage: /attach <path> [category]")
		}
		a, err := attachPath(c.view.Selector(), args[0], strings.Join(args[1:], " "))
		if err != nil {
			return lineHandled, "", err
		}
		return lineHandled, "Attached " + attachment.RenderText(a), nil

	case "/detach":
		c.view.Selector().Clear()
		return lineHandled, "Attachment removed", nil

	case "/open":
		c.view.Open()
		return lineHandled, "", nil

	case "/close":
		c.view.Close()
		return lineHandled, "", nil

	case "/toggle":
		c.view.Toggle()
		return lineHandled, "", nil

	case "/copy":
		last, ok := c.view.Transcript().Last(transcript.Bot)
		if !ok {
			return lineHandled, "", fmt.Errorf("no reply to copy yet")
		}
		if err := c.copy(last.Text); err != nil {
			return lineHandled, "", fmt.Errorf("clipboard: %w", err)
		}
		return lineHandled, "Copied last reply", nil

	case "/session":
		return lineHandled, "Session " + c.view.SessionID(), nil

	case "/unanswered":
		return lineUnanswered, "", nil

	case "/help", "/?":
		return lineHandled, helpText, nil

	case "/quit", "/exit":
		return lineQuit, "", nil

	default:
		return lineHandled, "", fmt.Errorf("%w %s, try /help or start the message with //", errUnknownCommand, name)
	}
}

func (c *commander) send(text string) (lineResult, string, error) {
	if c.view.Send(text) {
		return lineSent, "", nil
	}
	return lineIgnored, "", nil
}

// attachPath loads a file and stages it. An explicit category also narrows what the
// picker accepts, the way choosing a menu entry does.
func attachPath(sel *attachment.Selector, path, category string) (*attachment.Attachment, error) {
	cat, err := attachment.ParseCategory(category)
	if err != nil {
		return nil, err
	}
	a, err := attachment.Load(path)
	if err != nil {
		return nil, err
	}
	sel.Request(cat)
	if err := sel.Select(a, cat); err != nil {
		return nil, err
	}
	return sel.Pending(), nil
}

// WriteUnanswered loads the listing and prints it as a table, or the error message if
// the load failed.
func WriteUnanswered(ctx context.Context, w io.Writer, src widget.QuestionSource) error {
	l := widget.NewListing(src)
	if err := l.Load(ctx); err != nil {
		fmt.Fprintln(w, l.ErrorMessage())
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tQUESTION\tIMAGE\tUPDATE")
	for _, r := range l.Rows() {
		img := r.ImageURL
		if img == "" {
			img = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.Index, r.Question, img, r.EditLink)
	}
	return tw.Flush()
}
