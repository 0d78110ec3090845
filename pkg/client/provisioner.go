package client

import (
	"context"
	"fmt"

	"github.com/naveenspark/tess/pkg/domain"
)

// CreateConversationRequest asks the provisioner for a live-call resource.
type CreateConversationRequest struct {
	StudentID string `json:"student_id"`
	Mood      string `json:"mood"`
	SELSkill  string `json:"sel_skill"`
}

// CreateConversation provisions a live call and returns its join address.
func (c *Client) CreateConversation(ctx context.Context, req CreateConversationRequest) (*domain.ConversationResource, error) {
	var conv domain.ConversationResource
	if err := c.post(ctx, "/functions/v1/create-conversation", req, &conv); err != nil {
		return nil, fmt.Errorf("client.CreateConversation: %w", err)
	}
	if conv.ConversationID == "" || conv.JoinURL == "" {
		return nil, fmt.Errorf("client.CreateConversation: response missing conversation id or url")
	}
	return &conv, nil
}

// EndConversation tears down a provisioned live call.
func (c *Client) EndConversation(ctx context.Context, conversationID string) error {
	if err := c.post(ctx, "/functions/v1/end-conversation", map[string]string{"conversation_id": conversationID}, nil); err != nil {
		return fmt.Errorf("client.EndConversation: %w", err)
	}
	return nil
}
