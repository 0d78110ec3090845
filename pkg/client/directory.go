package client

import (
	"context"
	"fmt"
	"time"

	"github.com/naveenspark/tess/pkg/domain"
)

// StudentAuth is the directory response to a badge scan.
type StudentAuth struct {
	Student   domain.Student `json:"student"`
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// StaffAuth is the directory response to an email/password login.
type StaffAuth struct {
	Educator  domain.Educator `json:"educator"`
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// AuthenticateByScanToken exchanges an opaque badge scan token for a
// student session.
func (c *Client) AuthenticateByScanToken(ctx context.Context, scanToken string) (*StudentAuth, error) {
	var out StudentAuth
	if err := c.post(ctx, "/functions/v1/authenticate-qr", map[string]string{"qr_data": scanToken}, &out); err != nil {
		return nil, fmt.Errorf("client.AuthenticateByScanToken: %w", err)
	}
	if out.Token == "" || out.Student.ID == "" {
		return nil, fmt.Errorf("client.AuthenticateByScanToken: incomplete response")
	}
	return &out, nil
}

// AuthenticateStaff exchanges staff credentials for a session. Rejected
// credentials wrap ErrInvalidCredentials.
func (c *Client) AuthenticateStaff(ctx context.Context, email, password string) (*StaffAuth, error) {
	var out StaffAuth
	body := map[string]string{"email": email, "password": password}
	if err := c.post(ctx, "/functions/v1/authenticate-staff", body, &out); err != nil {
		if isInvalidCredentials(err) {
			return nil, fmt.Errorf("client.AuthenticateStaff: %w: %w", ErrInvalidCredentials, err)
		}
		return nil, fmt.Errorf("client.AuthenticateStaff: %w", err)
	}
	if out.Token == "" || out.Educator.ID == "" {
		return nil, fmt.Errorf("client.AuthenticateStaff: incomplete response")
	}
	return &out, nil
}
