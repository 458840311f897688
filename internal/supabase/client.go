package supabase

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/supabase-community/gotrue-go/types"
	"github.com/supabase-community/supabase-go"
	"zarta-backend/internal/config"
)

type Client struct {
	Supabase *supabase.Client
	Config   *config.Config
}

func NewClient(cfg *config.Config) (*Client, error) {
	client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, nil)
	if err != nil {
		return nil, err
	}

	return &Client{
		Supabase: client,
		Config:   cfg,
	}, nil
}

// AuthUserExists checks with the Supabase auth admin API whether the given
// id belongs to a real auth user. Used by the unauthenticated account
// creation fallback so it cannot mint accounts for arbitrary ids.
func (c *Client) AuthUserExists(userID string) (bool, string, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return false, "", fmt.Errorf("invalid user id: %w", err)
	}

	resp, err := c.Supabase.Auth.AdminGetUser(types.AdminGetUserRequest{UserID: uid})
	if err != nil {
		return false, "", fmt.Errorf("failed to look up auth user: %w", err)
	}

	return true, resp.Email, nil
}
