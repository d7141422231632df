package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/dhawanitbhatnagar/chatbot-app/pkg/attachment"
	"github.com/dhawanitbhatnagar/chatbot-app/pkg/chatbot"
	"github.com/dhawanitbhatnagar/chatbot-app/pkg/logger"
)

// FallbackReply is the only thing the user ever sees when a request fails.
const FallbackReply = "Sorry, I could not process your request. Please try again."

// replyOrFallback asks the backend and collapses every failure into FallbackReply.
// The cause goes to the log only.
func (d *Dispatcher) replyOrFallback(ctx context.Context, id uint64, text string, a *attachment.Attachment) string {
	endpoint := "query"
	var reply string
	var err error

	if d.backend == nil {
		err = errors.New("no backend configured")
	} else if a != nil {
		endpoint = "upload"
		reply, err = d.backend.Upload(ctx, a, text, d.sessionID)
	} else {
		reply, err = d.backend.Query(ctx, text, d.sessionID)
	}

	if err == nil {
		logger.DebugCF("dispatcher", fmt.Sprintf("Request #%d resolved", id),
			map[string]interface{}{"endpoint": endpoint, "reply_length": len(reply)})
		return reply
	}

	fields := map[string]interface{}{
		"endpoint":   endpoint,
		"session_id": d.sessionID,
		"failure":    classify(err),
		"error":      err.Error(),
	}
	if a != nil {
		fields["attachment"] = a.Name
		fields["attachment_size"] = a.Size()
	}
	logger.ErrorCF("dispatcher", fmt.Sprintf("Request #%d failed, replying with fallback", id), fields)

	return FallbackReply
}

func classify(err error) string {
	var se *chatbot.StatusError
	switch {
	case errors.As(err, &se):
		return fmt.Sprintf("status %d", se.Code)
	case errors.Is(err, chatbot.ErrMalformedResponse):
		return "malformed response"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "transport"
	}
}
