package widget

import (
	"context"
	"net/url"
	"sync"

	"github.com/dhawanitbhatnagar/chatbot-app/pkg/chatbot"
	"github.com/dhawanitbhatnagar/chatbot-app/pkg/logger"
)

// EditPathPrefix is where a row's update link points.
const EditPathPrefix = "/unanswered/updates/"

type QuestionSource interface {
	UnansweredQuestions(ctx context.Context) ([]chatbot.Question, error)
}

type ListingState int

const (
	Loading ListingState = iota
	Failed
	Loaded
)

func (s ListingState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Failed:
		return "failed"
	case Loaded:
		return "loaded"
	default:
		return "unknown"
	}
}

// Row is one line of the listing table.
type Row struct {
	Index    int
	ID       string
	Question string
	ImageURL string
	EditLink string
}

func EditLink(id string) string {
	return EditPathPrefix + url.PathEscape(id)
}

// Listing fetches the unanswered questions once and exposes them as rows. It starts
// in Loading; Failed and Loaded are terminal.
type Listing struct {
	src QuestionSource

	once  sync.Once
	mu    sync.RWMutex
	state ListingState
	err   error
	rows  []Row
}

func NewListing(src QuestionSource) *Listing {
	return &Listing{src: src}
}

// Load fetches the list. Only the first call reaches the backend; later calls return
// the first result.
func (l *Listing) Load(ctx context.Context) error {
	l.once.Do(func() {
		qs, err := l.src.UnansweredQuestions(ctx)

		l.mu.Lock()
		defer l.mu.Unlock()

		if err != nil {
			l.state = Failed
			l.err = err
			logger.WarnCF("widget", "Loading unanswered questions failed", map[string]interface{}{"error": err.Error()})
			return
		}

		l.rows = make([]Row, 0, len(qs))
		for i, q := range qs {
			id := q.ID.String()
			l.rows = append(l.rows, Row{
				Index:    i + 1,
				ID:       id,
				Question: q.Question,
				ImageURL: q.ImageURL,
				EditLink: EditLink(id),
			})
		}
		l.state = Loaded
	})

	return l.Err()
}

func (l *Listing) State() ListingState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

func (l *Listing) Err() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.err
}

// ErrorMessage is the text shown in place of the table when loading failed.
func (l *Listing) ErrorMessage() string {
	if err := l.Err(); err != nil {
		return err.Error()
	}
	return ""
}

// Rows is empty unless the listing is Loaded.
func (l *Listing) Rows() []Row {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Row(nil), l.rows...)
}
