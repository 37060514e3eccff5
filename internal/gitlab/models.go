package gitlab

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// User is a user record as returned by the API. It is kept as a loose map
// because the set of fields differs between GitLab versions and only the
// fields present in the record take part in comparisons.
type User map[string]any

// ID returns the numeric user id, or 0 if it is missing.
func (u User) ID() int64 {
	id, _ := toInt64(u["id"])
	return id
}

// Username returns the username field.
func (u User) Username() string {
	s, _ := u["username"].(string)
	return s
}

// Email returns the primary email and whether the record carries one.
func (u User) Email() (string, bool) {
	s, ok := u["email"].(string)
	return s, ok
}

// Has reports whether the record carries the field at all.
func (u User) Has(field string) bool {
	_, ok := u[field]
	return ok
}

// SSHKey is an entry of /users/:id/keys
type SSHKey struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Key   string `json:"key"`
}

// Email is an entry of /users/:id/emails
type Email struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

func userPath(id int64) string {
	return fmt.Sprintf("/users/%d", id)
}
