package sitehost_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/sagarc03/sitehost"
	"github.com/stretchr/testify/assert"
)

func TestAuthorize(t *testing.T) {
	user := sitehost.Principal{ID: uuid.New(), Email: "user@example.com"}
	admin := sitehost.Principal{ID: uuid.New(), Email: "admin@example.com", Roles: []sitehost.Role{sitehost.RoleAdmin}}

	tests := []struct {
		name      string
		principal sitehost.Principal
		required  sitehost.Role
		wantErr   error
	}{
		{name: "anonymous denied for signed-in gate", principal: sitehost.Principal{}, required: "", wantErr: sitehost.ErrUnauthorized},
		{name: "anonymous denied for admin gate", principal: sitehost.Principal{}, required: sitehost.RoleAdmin, wantErr: sitehost.ErrUnauthorized},
		{name: "user allowed for signed-in gate", principal: user, required: ""},
		{name: "user forbidden for admin gate", principal: user, required: sitehost.RoleAdmin, wantErr: sitehost.ErrForbidden},
		{name: "admin allowed for admin gate", principal: admin, required: sitehost.RoleAdmin},
		{name: "admin allowed for signed-in gate", principal: admin, required: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sitehost.Authorize(tt.principal, tt.required)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAuthorizeOwner(t *testing.T) {
	owner := sitehost.Principal{ID: uuid.New()}
	other := sitehost.Principal{ID: uuid.New()}
	admin := sitehost.Principal{ID: uuid.New(), Roles: []sitehost.Role{sitehost.RoleAdmin}}

	assert.NoError(t, sitehost.AuthorizeOwner(owner, owner.ID))
	assert.NoError(t, sitehost.AuthorizeOwner(admin, owner.ID))
	assert.ErrorIs(t, sitehost.AuthorizeOwner(other, owner.ID), sitehost.ErrForbidden)
	assert.ErrorIs(t, sitehost.AuthorizeOwner(sitehost.Principal{}, owner.ID), sitehost.ErrUnauthorized)
}
