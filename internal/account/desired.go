// Package account reconciles the desired state of one GitLab user, its SSH
// key and its email against what the API currently stores.
package account

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/juju/errors"
)

// AllowedUserFields are the fields sent to the users endpoint and compared
// against the stored record. admin and email are handled separately because
// the API spells or treats them differently.
var AllowedUserFields = []string{
	"password", "username", "name", "skype", "linkedin", "twitter", "website_url",
	"projects_limit", "extern_uid", "provider", "bio", "can_create_group",
}

// RequiredCreateFields must all be present to create a user.
var RequiredCreateFields = []string{"email", "username", "name", "password"}

// RequiredUpdateFields must all be present to update a user.
var RequiredUpdateFields = []string{"username"}

// Desired is the declared state of one account. A nil field means the
// caller has no opinion on it; it is neither sent nor compared.
type Desired struct {
	Username string

	Name       *string
	Email      *string
	Password   *string
	Skype      *string
	Linkedin   *string
	Twitter    *string
	WebsiteURL *string
	ExternUID  *string
	Provider   *string
	Bio        *string

	ProjectsLimit *int

	Admin          *bool
	CanCreateGroup *bool

	SSHKeyTitle *string
	SSHKey      *string
}

// userFields returns the allowed fields that are set, keyed by API name.
func (d Desired) userFields() map[string]any {
	fields := map[string]any{}
	if d.Username != "" {
		fields["username"] = d.Username
	}
	strs := map[string]*string{
		"password":    d.Password,
		"name":        d.Name,
		"skype":       d.Skype,
		"linkedin":    d.Linkedin,
		"twitter":     d.Twitter,
		"website_url": d.WebsiteURL,
		"extern_uid":  d.ExternUID,
		"provider":    d.Provider,
		"bio":         d.Bio,
	}
	for name, v := range strs {
		if v != nil {
			fields[name] = *v
		}
	}
	if d.ProjectsLimit != nil {
		fields["projects_limit"] = *d.ProjectsLimit
	}
	if d.CanCreateGroup != nil {
		fields["can_create_group"] = *d.CanCreateGroup
	}
	return fields
}

// HasSSHKey reports whether a key (and therefore its title) was declared.
func (d Desired) HasSSHKey() bool {
	return d.SSHKey != nil && d.SSHKeyTitle != nil
}

// DesiredFromMap builds a Desired from loosely typed input such as a decoded
// config section or a script result. Explicit nulls count as absent.
func DesiredFromMap(raw map[string]any) (Desired, error) {
	var d Desired
	var unknown []string

	for key, value := range raw {
		if value == nil {
			continue
		}
		var err error
		switch key {
		case "username":
			var s *string
			s, err = stringField(key, value)
			if s != nil {
				d.Username = *s
			}
		case "name":
			d.Name, err = stringField(key, value)
		case "email":
			d.Email, err = stringField(key, value)
		case "password":
			d.Password, err = stringField(key, value)
		case "skype":
			d.Skype, err = stringField(key, value)
		case "linkedin":
			d.Linkedin, err = stringField(key, value)
		case "twitter":
			d.Twitter, err = stringField(key, value)
		case "website_url":
			d.WebsiteURL, err = stringField(key, value)
		case "extern_uid":
			d.ExternUID, err = stringField(key, value)
		case "provider":
			d.Provider, err = stringField(key, value)
		case "bio":
			d.Bio, err = stringField(key, value)
		case "projects_limit":
			d.ProjectsLimit, err = intField(key, value)
		case "admin":
			d.Admin, err = boolField(key, value)
		case "can_create_group":
			d.CanCreateGroup, err = boolField(key, value)
		case "ssh_key_title":
			d.SSHKeyTitle, err = stringField(key, value)
		case "ssh_key":
			d.SSHKey, err = stringField(key, value)
		default:
			unknown = append(unknown, key)
		}
		if err != nil {
			return Desired{}, err
		}
	}

	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Desired{}, errors.NewNotValid(nil, "unsupported parameters: "+strings.Join(unknown, ", "))
	}
	if err := d.Validate(); err != nil {
		return Desired{}, err
	}
	return d, nil
}

// Validate checks the constraints that hold regardless of remote state.
func (d Desired) Validate() error {
	if d.Username == "" {
		return errors.NewNotValid(nil, "username is required")
	}
	if (d.SSHKey == nil) != (d.SSHKeyTitle == nil) {
		return errors.NewNotValid(nil, "parameters are required together: ssh_key_title, ssh_key")
	}
	return nil
}

func stringField(key string, value any) (*string, error) {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case int, int64, float64, json.Number:
		s = fmt.Sprint(v)
	default:
		return nil, errors.NewNotValid(nil, fmt.Sprintf("%s: expected a string, got %T", key, value))
	}
	return &s, nil
}

func intField(key string, value any) (*int, error) {
	var n int
	switch v := value.(type) {
	case int:
		n = v
	case int64:
		n = int(v)
	case float64:
		if v != math.Trunc(v) {
			return nil, errors.NewNotValid(nil, fmt.Sprintf("%s: %v is not an integer", key, v))
		}
		n = int(v)
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return nil, errors.NewNotValid(err, fmt.Sprintf("%s: %v is not an integer", key, v))
		}
		n = int(i)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, errors.NewNotValid(err, fmt.Sprintf("%s: %q is not an integer", key, v))
		}
		n = i
	default:
		return nil, errors.NewNotValid(nil, fmt.Sprintf("%s: expected an integer, got %T", key, value))
	}
	return &n, nil
}

func boolField(key string, value any) (*bool, error) {
	b, err := ParseBool(value)
	if err != nil {
		return nil, errors.Annotatef(err, "%s", key)
	}
	return &b, nil
}
