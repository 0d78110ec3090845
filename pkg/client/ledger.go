package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"

	"github.com/naveenspark/tess/pkg/domain"
)

// CreateSessionRequest is the payload for a new check-in record.
type CreateSessionRequest struct {
	StudentID  string   `json:"student_id"`
	MoodEmoji  string   `json:"mood_emoji"`
	MoodScore  int      `json:"mood_score"`
	SELSkill   string   `json:"sel_skill"`
	ContextTag string   `json:"context_tag,omitempty"`
	Transcript string   `json:"transcript"`
	Flags      []string `json:"flags"`
	Duration   int      `json:"duration"`
}

// CreateSession inserts a check-in record and returns it with its id.
func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest) (*domain.CheckInSession, error) {
	if req.Flags == nil {
		req.Flags = []string{}
	}
	var created domain.CheckInSession
	if err := c.post(ctx, "/rest/v1/sessions", req, &created); err != nil {
		return nil, fmt.Errorf("client.CreateSession: %w", err)
	}
	if created.ID == "" {
		return nil, fmt.Errorf("client.CreateSession: response missing id")
	}
	return &created, nil
}

// UpdateSession applies a partial update to a check-in record.
func (c *Client) UpdateSession(ctx context.Context, id string, upd domain.SessionUpdate) (*domain.CheckInSession, error) {
	var updated domain.CheckInSession
	if err := c.doRequest(ctx, http.MethodPatch, "/rest/v1/sessions/"+url.PathEscape(id), upd, &updated); err != nil {
		return nil, fmt.Errorf("client.UpdateSession: %w", err)
	}
	return &updated, nil
}

// ListSessions returns a student's check-ins, newest first.
func (c *Client) ListSessions(ctx context.Context, studentID string) ([]domain.CheckInSession, error) {
	params := url.Values{}
	params.Set("student_id", studentID)
	params.Set("order", "created_at.desc")

	var sessions []domain.CheckInSession
	if err := c.get(ctx, "/rest/v1/sessions?"+params.Encode(), &sessions); err != nil {
		return nil, fmt.Errorf("client.ListSessions: %w", err)
	}
	// The ledger already orders rows; re-sort so callers can rely on it.
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}
