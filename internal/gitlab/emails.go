package gitlab

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

func emailsPath(userID int64) string {
	return fmt.Sprintf("/users/%d/emails", userID)
}

// EmailID finds the id of one of the user's secondary emails.
// GitLab stores addresses lower-cased, so the match ignores case.
func (c *Client) EmailID(ctx context.Context, userID int64, email string) (int64, bool, error) {
	path := emailsPath(userID)
	resp, ok, err := c.lookup(ctx, path)
	if err != nil || !ok {
		return 0, false, err
	}

	var emails []Email
	if err := decodeInto(resp.Body, &emails); err != nil {
		if c.strictLookups {
			return 0, false, decodeError(path, err)
		}
		log.Warn().Err(err).Int64("user_id", userID).Msg("Failed to parse email collection, treating as not found")
		return 0, false, nil
	}

	want := strings.ToLower(email)
	for _, e := range emails {
		if strings.ToLower(e.Email) == want {
			return e.ID, true, nil
		}
	}
	return 0, false, nil
}

// DeleteEmail removes one secondary email of the user.
func (c *Client) DeleteEmail(ctx context.Context, userID, emailID int64) error {
	path := fmt.Sprintf("%s/%d", emailsPath(userID), emailID)
	resp, err := c.Send(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	if !resp.Success() {
		return statusError(http.MethodDelete, path, resp)
	}
	return nil
}

// AddEmail attaches email to the user.
func (c *Client) AddEmail(ctx context.Context, userID int64, email string) error {
	path := emailsPath(userID)
	body := map[string]any{"id": userID, "email": email}
	resp, err := c.Send(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	if !resp.Success() {
		return statusError(http.MethodPost, path, resp)
	}
	return nil
}
