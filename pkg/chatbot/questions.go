package chatbot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// QuestionID accepts both string and numeric ids from the backend.
type QuestionID string

func (id *QuestionID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = QuestionID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("question id: %w", err)
	}
	*id = QuestionID(n.String())
	return nil
}

func (id QuestionID) String() string { return string(id) }

// Question is a user question the bot could not answer.
type Question struct {
	ID       QuestionID `json:"id"`
	Question string     `json:"question"`
	ImageURL string     `json:"imageUrl,omitempty"`
}

type questionsResponse struct {
	Data *[]Question `json:"data"`
}

// UnansweredQuestions fetches the read-only list of unanswered questions.
func (c *Client) UnansweredQuestions(ctx context.Context) ([]Question, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+unansweredPath, nil)
	if err != nil {
		return nil, fmt.Errorf("chatbot: build questions request: %w", err)
	}

	data, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var out questionsResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if out.Data == nil {
		return nil, fmt.Errorf("%w: missing data field", ErrMalformedResponse)
	}
	return *out.Data, nil
}
