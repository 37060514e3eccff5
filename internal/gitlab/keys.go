package gitlab

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
)

func keysPath(userID int64) string {
	return fmt.Sprintf("/users/%d/keys", userID)
}

// SSHKeyForUser returns the first key of the user whose title matches,
// or nil if there is none.
func (c *Client) SSHKeyForUser(ctx context.Context, userID int64, title string) (*SSHKey, error) {
	path := keysPath(userID)
	resp, ok, err := c.lookup(ctx, path)
	if err != nil || !ok {
		return nil, err
	}

	var keys []SSHKey
	if err := decodeInto(resp.Body, &keys); err != nil {
		if c.strictLookups {
			return nil, decodeError(path, err)
		}
		log.Warn().Err(err).Int64("user_id", userID).Msg("Failed to parse key collection, treating as not found")
		return nil, nil
	}

	for _, key := range keys {
		if key.Title == title {
			return &key, nil
		}
	}
	return nil, nil
}

// DeleteSSHKey removes one key of the user.
func (c *Client) DeleteSSHKey(ctx context.Context, userID, keyID int64) error {
	path := fmt.Sprintf("%s/%d", keysPath(userID), keyID)
	resp, err := c.Send(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	if !resp.Success() {
		return statusError(http.MethodDelete, path, resp)
	}
	return nil
}

// AddSSHKey uploads a key under title.
func (c *Client) AddSSHKey(ctx context.Context, userID int64, title, key string) error {
	path := keysPath(userID)
	body := map[string]any{"id": userID, "title": title, "key": key}
	resp, err := c.Send(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	if !resp.Success() {
		return statusError(http.MethodPost, path, resp)
	}
	return nil
}
