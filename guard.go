package sitehost

import (
	"fmt"

	"github.com/google/uuid"
)

// Authorize decides whether p may run an operation gated on required.
// An empty required role only demands an authenticated principal.
// It never touches storage and is evaluated before any data access.
func Authorize(p Principal, required Role) error {
	if !p.IsAuthenticated() {
		return ErrUnauthorized
	}
	if required == "" {
		return nil
	}
	if !p.HasRole(required) {
		return fmt.Errorf("role %s required: %w", required, ErrForbidden)
	}
	return nil
}

// AuthorizeOwner allows the owner of a resource or an administrator.
func AuthorizeOwner(p Principal, owner uuid.UUID) error {
	if err := Authorize(p, ""); err != nil {
		return err
	}
	if p.ID == owner || p.HasRole(RoleAdmin) {
		return nil
	}
	return fmt.Errorf("not the owner: %w", ErrForbidden)
}
