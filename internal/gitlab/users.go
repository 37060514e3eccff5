package gitlab

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
)

const usersPath = "/users"

// FindUserByName scans the users collection for an exact username match.
// It returns nil when no user matches, when the lookup answers with a
// non-200 status, or when the body cannot be parsed (the last two become
// errors under strict lookups).
func (c *Client) FindUserByName(ctx context.Context, username string) (User, error) {
	resp, ok, err := c.lookup(ctx, usersPath)
	if err != nil || !ok {
		return nil, err
	}

	var users []User
	if err := decodeInto(resp.Body, &users); err != nil {
		if c.strictLookups {
			return nil, decodeError(usersPath, err)
		}
		log.Warn().Err(err).Msg("Failed to parse users collection, treating as not found")
		return nil, nil
	}

	for _, u := range users {
		if u.Username() == username {
			return u, nil
		}
	}
	return nil, nil
}

// CreateUser posts a new user and returns the created record.
func (c *Client) CreateUser(ctx context.Context, payload map[string]any) (User, error) {
	return c.writeUser(ctx, http.MethodPost, usersPath, payload)
}

// UpdateUser puts payload onto an existing user and returns the stored record.
func (c *Client) UpdateUser(ctx context.Context, userID int64, payload map[string]any) (User, error) {
	return c.writeUser(ctx, http.MethodPut, userPath(userID), payload)
}

func (c *Client) writeUser(ctx context.Context, method, path string, payload map[string]any) (User, error) {
	resp, err := c.Send(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, statusError(method, path, resp)
	}

	var user User
	if err := decodeInto(resp.Body, &user); err != nil {
		return nil, &RemoteError{Method: method, Path: path, Status: resp.Status, Body: string(resp.Body)}
	}
	return user, nil
}

// DeleteUser removes a user. Only 200 counts as success.
func (c *Client) DeleteUser(ctx context.Context, userID int64) error {
	path := userPath(userID)
	resp, err := c.Send(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return statusError(http.MethodDelete, path, resp)
	}
	return nil
}
