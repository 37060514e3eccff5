package account

import (
	"strings"

	"github.com/juju/errors"

	"github.com/dokzlo13/gitlab-user/internal/gitlab"
)

// Payload is the body of a user create or update request.
type Payload map[string]any

// BuildPayload assembles the request body for d. When current is nil the
// payload is for a create; otherwise it is for an update and email is left
// out, because the users endpoint ignores email changes.
//
// The required-field check runs before email is dropped, so an update only
// needs username while a create needs all of RequiredCreateFields.
func BuildPayload(d Desired, current gitlab.User) (Payload, error) {
	p := Payload(d.userFields())
	if d.Admin != nil {
		p["admin"] = *d.Admin
	}
	if d.Email != nil {
		p["email"] = *d.Email
	}

	required := RequiredCreateFields
	if current != nil {
		required = RequiredUpdateFields
	}
	for _, field := range required {
		if _, ok := p[field]; !ok {
			return nil, errors.NewNotValid(nil,
				strings.Join(RequiredCreateFields, ", ")+" are required when creating a new user")
		}
	}

	if current != nil {
		delete(p, "email")
	}
	return p, nil
}
