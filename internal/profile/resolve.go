package profile

import "github.com/matheus3301/clinicchat/internal/config"

// Resolve builds the active identity field by field using precedence:
// 1. flags (--id, --name, --role)
// 2. config.toml [identity]
// Missing ID after both is ErrNoIdentity.
func Resolve(flags Identity, cfg *config.Config) (Identity, error) {
	id := flags
	if cfg != nil {
		if id.ID == "" {
			id.ID = cfg.Identity.ID
		}
		if id.Name == "" {
			id.Name = cfg.Identity.Name
		}
		if id.Role == "" {
			id.Role = cfg.Identity.Role
		}
	}
	if id.ID == "" {
		return Identity{}, ErrNoIdentity
	}
	if err := id.Validate(); err != nil {
		return Identity{}, err
	}
	return id, nil
}
