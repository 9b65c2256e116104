package profile

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var idRegexp = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ErrNoIdentity is returned by Resolve when neither flags nor config name a user.
var ErrNoIdentity = errors.New("no identity configured: pass --id or set [identity] in config.toml")

// Identity is the local user the chat session is announced as.
type Identity struct {
	ID   string `validate:"required"`
	Name string `validate:"required"`
	Role string `validate:"required,oneof=admin doctor nurse receptionist patient staff"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateID checks that id is usable as a directory name.
func ValidateID(id string) error {
	if !idRegexp.MatchString(id) {
		return fmt.Errorf("invalid identity id %q: must match ^[A-Za-z0-9_-]{1,64}$", id)
	}
	return nil
}

// Validate checks every identity field.
func (i Identity) Validate() error {
	if err := validate.Struct(i); err != nil {
		return fmt.Errorf("invalid identity: %w", err)
	}
	return ValidateID(i.ID)
}
