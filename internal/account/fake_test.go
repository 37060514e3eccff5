package account

import (
	"context"
	"fmt"
	"strings"

	"github.com/dokzlo13/gitlab-user/internal/gitlab"
)

// fakeAPI is an in-memory API that records every call as "METHOD path".
type fakeAPI struct {
	user   gitlab.User
	keys   []gitlab.SSHKey
	emails []gitlab.Email

	created gitlab.User
	updated gitlab.User

	payloads map[string]map[string]any
	calls    []string

	failOn map[string]error
}

func (f *fakeAPI) record(call string, payload map[string]any) error {
	f.calls = append(f.calls, call)
	if payload != nil {
		if f.payloads == nil {
			f.payloads = map[string]map[string]any{}
		}
		f.payloads[call] = payload
	}
	if err, ok := f.failOn[call]; ok {
		return err
	}
	return nil
}

func (f *fakeAPI) mutations() []string {
	var out []string
	for _, c := range f.calls {
		if !strings.HasPrefix(c, "GET ") {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeAPI) FindUserByName(_ context.Context, username string) (gitlab.User, error) {
	if err := f.record("GET /users", nil); err != nil {
		return nil, err
	}
	if f.user != nil && f.user.Username() == username {
		return f.user, nil
	}
	return nil, nil
}

func (f *fakeAPI) SSHKeyForUser(_ context.Context, userID int64, title string) (*gitlab.SSHKey, error) {
	if err := f.record(fmt.Sprintf("GET /users/%d/keys", userID), nil); err != nil {
		return nil, err
	}
	for _, k := range f.keys {
		if k.Title == title {
			k := k
			return &k, nil
		}
	}
	return nil, nil
}

func (f *fakeAPI) EmailID(_ context.Context, userID int64, email string) (int64, bool, error) {
	if err := f.record(fmt.Sprintf("GET /users/%d/emails", userID), nil); err != nil {
		return 0, false, err
	}
	for _, e := range f.emails {
		if strings.EqualFold(e.Email, email) {
			return e.ID, true, nil
		}
	}
	return 0, false, nil
}

func (f *fakeAPI) CreateUser(_ context.Context, payload map[string]any) (gitlab.User, error) {
	if err := f.record("POST /users", payload); err != nil {
		return nil, err
	}
	return f.created, nil
}

func (f *fakeAPI) UpdateUser(_ context.Context, userID int64, payload map[string]any) (gitlab.User, error) {
	if err := f.record(fmt.Sprintf("PUT /users/%d", userID), payload); err != nil {
		return nil, err
	}
	if f.updated != nil {
		return f.updated, nil
	}
	return f.user, nil
}

func (f *fakeAPI) DeleteUser(_ context.Context, userID int64) error {
	return f.record(fmt.Sprintf("DELETE /users/%d", userID), nil)
}

func (f *fakeAPI) DeleteSSHKey(_ context.Context, userID, keyID int64) error {
	return f.record(fmt.Sprintf("DELETE /users/%d/keys/%d", userID, keyID), nil)
}

func (f *fakeAPI) AddSSHKey(_ context.Context, userID int64, title, key string) error {
	return f.record(fmt.Sprintf("POST /users/%d/keys", userID), map[string]any{"id": userID, "title": title, "key": key})
}

func (f *fakeAPI) DeleteEmail(_ context.Context, userID, emailID int64) error {
	return f.record(fmt.Sprintf("DELETE /users/%d/emails/%d", userID, emailID), nil)
}

func (f *fakeAPI) AddEmail(_ context.Context, userID int64, email string) error {
	return f.record(fmt.Sprintf("POST /users/%d/emails", userID), map[string]any{"id": userID, "email": email})
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func intPtr(n int) *int { return &n }
