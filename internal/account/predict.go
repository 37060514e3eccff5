package account

import (
	"bytes"
	"encoding/json"

	"github.com/dokzlo13/gitlab-user/internal/gitlab"
)

// UserChanged reports whether sending p would change the stored user.
//
// password is never returned by the API, so a payload carrying one always
// counts as a change. Repeated runs with a password are not idempotent.
func UserChanged(p Payload, current gitlab.User) bool {
	if current == nil {
		return true
	}

	if admin, ok := p["admin"]; ok && current.Has("is_admin") {
		stored, err := ParseBool(current["is_admin"])
		if err != nil || stored != admin {
			return true
		}
	}

	for _, field := range AllowedUserFields {
		want, ok := p[field]
		if !ok {
			continue
		}
		have, ok := current[field]
		if !ok || !valuesEqual(want, have) {
			return true
		}
	}
	return false
}

// SSHKeyChanged reports whether the declared key needs to be uploaded.
// found is the key currently stored under the declared title, if any.
func SSHKeyChanged(d Desired, found *gitlab.SSHKey) bool {
	if d.SSHKey == nil {
		return false
	}
	return found == nil || found.Key != *d.SSHKey
}

// EmailChanged reports whether the stored primary email differs from the
// declared one. The comparison is exact; case only matters later when
// locating the stored address among the user's emails.
func EmailChanged(d Desired, current gitlab.User) bool {
	if d.Email == nil || current == nil {
		return false
	}
	stored, ok := current.Email()
	return !ok || stored != *d.Email
}

// valuesEqual compares a declared value with a decoded one through their
// JSON encodings, so 10 and json.Number("10") are equal while "10" is not.
func valuesEqual(want, have any) bool {
	a, err := json.Marshal(want)
	if err != nil {
		return false
	}
	b, err := json.Marshal(have)
	if err != nil {
		return false
	}
	return bytes.Equal(a, b)
}
