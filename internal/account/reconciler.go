package account

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/gitlab-user/internal/gitlab"
)

// API is the subset of the GitLab client the reconciler drives.
type API interface {
	FindUserByName(ctx context.Context, username string) (gitlab.User, error)
	SSHKeyForUser(ctx context.Context, userID int64, title string) (*gitlab.SSHKey, error)
	EmailID(ctx context.Context, userID int64, email string) (int64, bool, error)

	CreateUser(ctx context.Context, payload map[string]any) (gitlab.User, error)
	UpdateUser(ctx context.Context, userID int64, payload map[string]any) (gitlab.User, error)
	DeleteUser(ctx context.Context, userID int64) error

	DeleteSSHKey(ctx context.Context, userID, keyID int64) error
	AddSSHKey(ctx context.Context, userID int64, title, key string) error

	DeleteEmail(ctx context.Context, userID, emailID int64) error
	AddEmail(ctx context.Context, userID int64, email string) error
}

// EmailDeletePolicy decides what happens when the stored email has to be
// replaced but cannot be found among the user's emails.
type EmailDeletePolicy string

const (
	// EmailDeleteSkipMissing only creates the new address.
	EmailDeleteSkipMissing EmailDeletePolicy = "skip"
	// EmailDeleteRequirePrior fails before touching the emails at all.
	EmailDeleteRequirePrior EmailDeletePolicy = "require"
)

// ParseEmailDeletePolicy maps a config value onto a policy. Empty means skip.
func ParseEmailDeletePolicy(s string) (EmailDeletePolicy, error) {
	switch EmailDeletePolicy(s) {
	case "", EmailDeleteSkipMissing:
		return EmailDeleteSkipMissing, nil
	case EmailDeleteRequirePrior:
		return EmailDeleteRequirePrior, nil
	}
	return "", fmt.Errorf("unknown email delete policy %q (want %q or %q)", s, EmailDeleteSkipMissing, EmailDeleteRequirePrior)
}

// Plan is the outcome of comparing desired with stored state. Nothing in a
// Plan has been applied yet.
type Plan struct {
	Current gitlab.User
	Key     *gitlab.SSHKey
	Payload Payload

	UserChanged  bool
	KeyChanged   bool
	EmailChanged bool
}

// Changed reports whether applying the plan would change anything.
func (p *Plan) Changed() bool {
	return p.UserChanged || p.KeyChanged || p.EmailChanged
}

// Reconciler makes one GitLab account match its declared state.
type Reconciler struct {
	api         API
	emailPolicy EmailDeletePolicy
}

// New creates a new Reconciler
func New(api API, emailPolicy EmailDeletePolicy) *Reconciler {
	if emailPolicy == "" {
		emailPolicy = EmailDeleteSkipMissing
	}
	return &Reconciler{
		api:         api,
		emailPolicy: emailPolicy,
	}
}

// Plan performs the lookups for d and decides what would change.
// It never issues a mutating request.
func (r *Reconciler) Plan(ctx context.Context, d Desired) (*Plan, error) {
	current, err := r.api.FindUserByName(ctx, d.Username)
	if err != nil {
		return nil, err
	}

	var key *gitlab.SSHKey
	if current != nil && d.SSHKeyTitle != nil {
		key, err = r.api.SSHKeyForUser(ctx, current.ID(), *d.SSHKeyTitle)
		if err != nil {
			return nil, err
		}
	}

	payload, err := BuildPayload(d, current)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Current:      current,
		Key:          key,
		Payload:      payload,
		UserChanged:  UserChanged(payload, current),
		KeyChanged:   SSHKeyChanged(d, key),
		EmailChanged: EmailChanged(d, current),
	}

	if current != nil && d.Password != nil {
		log.Warn().
			Str("username", d.Username).
			Msg("Password supplied, user will be updated on every run")
	}

	log.Debug().
		Str("username", d.Username).
		Bool("exists", current != nil).
		Bool("user_changed", plan.UserChanged).
		Bool("key_changed", plan.KeyChanged).
		Bool("email_changed", plan.EmailChanged).
		Msg("Planned reconcile")

	return plan, nil
}

// CreateOrUpdate makes the account exist with the declared fields, key and
// email. In check mode only lookups are sent. The result reports whether
// anything changed (or would change).
func (r *Reconciler) CreateOrUpdate(ctx context.Context, d Desired, checkMode bool) (bool, error) {
	plan, err := r.Plan(ctx, d)
	if err != nil {
		return false, err
	}
	if checkMode || !plan.Changed() {
		return plan.Changed(), nil
	}
	if err := r.Apply(ctx, d, plan); err != nil {
		return false, err
	}
	return true, nil
}

// Apply executes plan. A failing step aborts the remaining ones; steps that
// already succeeded are not rolled back.
func (r *Reconciler) Apply(ctx context.Context, d Desired, plan *Plan) error {
	user := plan.Current

	if plan.UserChanged {
		var err error
		user, err = r.applyUser(ctx, d, plan)
		if err != nil {
			return err
		}
	}

	if user != nil && plan.KeyChanged {
		if err := r.applySSHKey(ctx, user.ID(), d, plan.Key); err != nil {
			return err
		}
	}

	if plan.EmailChanged {
		if err := r.applyEmail(ctx, user, *d.Email); err != nil {
			return err
		}
	}

	return nil
}

func (r *Reconciler) applyUser(ctx context.Context, d Desired, plan *Plan) (gitlab.User, error) {
	if plan.Current == nil {
		log.Info().Str("username", d.Username).Msg("Creating user")
		return r.api.CreateUser(ctx, plan.Payload)
	}

	log.Info().
		Str("username", d.Username).
		Int64("user_id", plan.Current.ID()).
		Msg("Updating user")
	return r.api.UpdateUser(ctx, plan.Current.ID(), plan.Payload)
}

// applySSHKey replaces the key stored under the declared title.
// Keys have no update endpoint, so a changed key is deleted and re-added.
func (r *Reconciler) applySSHKey(ctx context.Context, userID int64, d Desired, existing *gitlab.SSHKey) error {
	if existing != nil {
		log.Info().
			Int64("user_id", userID).
			Int64("key_id", existing.ID).
			Str("title", existing.Title).
			Msg("Deleting outdated SSH key")
		if err := r.api.DeleteSSHKey(ctx, userID, existing.ID); err != nil {
			return err
		}
	}

	log.Info().
		Int64("user_id", userID).
		Str("title", *d.SSHKeyTitle).
		Msg("Adding SSH key")
	return r.api.AddSSHKey(ctx, userID, *d.SSHKeyTitle, *d.SSHKey)
}

// applyEmail swaps the stored email for the declared one.
func (r *Reconciler) applyEmail(ctx context.Context, user gitlab.User, email string) error {
	userID := user.ID()
	stored, _ := user.Email()

	emailID, found, err := r.api.EmailID(ctx, userID, stored)
	if err != nil {
		return err
	}

	switch {
	case found:
		log.Info().
			Int64("user_id", userID).
			Int64("email_id", emailID).
			Msg("Deleting previous email")
		if err := r.api.DeleteEmail(ctx, userID, emailID); err != nil {
			return err
		}
	case r.emailPolicy == EmailDeleteRequirePrior:
		return &gitlab.RemoteError{
			Method: "DELETE",
			Path:   fmt.Sprintf("/users/%d/emails", userID),
			Reason: fmt.Sprintf("email %q not found among the emails of user %d", stored, userID),
		}
	default:
		log.Debug().
			Int64("user_id", userID).
			Msg("Previous email not listed, skipping delete")
	}

	log.Info().Int64("user_id", userID).Msg("Adding email")
	return r.api.AddEmail(ctx, userID, email)
}

// Remove deletes the account if it exists. In check mode it only reports
// whether a delete would happen.
func (r *Reconciler) Remove(ctx context.Context, username string, checkMode bool) (bool, error) {
	user, err := r.api.FindUserByName(ctx, username)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, nil
	}
	if checkMode {
		return true, nil
	}

	log.Info().
		Str("username", username).
		Int64("user_id", user.ID()).
		Msg("Deleting user")
	if err := r.api.DeleteUser(ctx, user.ID()); err != nil {
		return false, err
	}
	return true, nil
}
