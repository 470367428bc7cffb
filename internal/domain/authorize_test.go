package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorize(t *testing.T) {
	perms, err := NewPermissionSet(PermPostJobs)
	require.NoError(t, err)

	active := &Account{Role: RoleHRRecruitment, IsActive: true, Permissions: perms}

	d, err := Authorize(active, PermPostJobs)
	require.NoError(t, err)
	assert.Equal(t, Allow, d)

	d, err = Authorize(active, PermDeleteUsers)
	require.NoError(t, err)
	assert.Equal(t, Deny, d)

	_, err = Authorize(active, "canFly")
	require.ErrorIs(t, err, ErrUnknownPermission)

	d, err = Authorize(nil, PermPostJobs)
	require.NoError(t, err)
	assert.Equal(t, Deny, d)
}

func TestAuthorize_InactiveDeniedEverything(t *testing.T) {
	_, all, err := DefaultsFor(RoleAdministrator)
	require.NoError(t, err)

	inactive := &Account{Role: RoleAdministrator, IsActive: false, Permissions: all}
	for _, p := range Permissions() {
		d, err := Authorize(inactive, p)
		require.NoError(t, err)
		assert.Equal(t, Deny, d, p)
	}
}

func TestAuthorize_RoleIsNotConsulted(t *testing.T) {
	_, all, err := DefaultsFor(RoleAdministrator)
	require.NoError(t, err)
	require.NoError(t, all.Set(PermDeleteUsers, false))

	admin := &Account{Role: RoleAdministrator, IsActive: true, Permissions: all}
	d, err := Authorize(admin, PermDeleteUsers)
	require.NoError(t, err)
	assert.Equal(t, Deny, d)

	// 低等级角色被显式授权后同样放行
	hr := &Account{Role: RoleHRRecruitment, IsActive: true}
	require.NoError(t, hr.Permissions.Set(PermDeleteUsers, true))
	d, err = Authorize(hr, PermDeleteUsers)
	require.NoError(t, err)
	assert.Equal(t, Allow, d)
}

func TestAuthorizeAny(t *testing.T) {
	perms, err := NewPermissionSet(PermManageTeam)
	require.NoError(t, err)
	acc := &Account{IsActive: true, Permissions: perms}

	d, err := AuthorizeAny(acc, PermAddUsers, PermManageTeam)
	require.NoError(t, err)
	assert.Equal(t, Allow, d)

	d, err = AuthorizeAny(acc, PermAddUsers, PermDeleteUsers)
	require.NoError(t, err)
	assert.Equal(t, Deny, d)

	d, err = AuthorizeAny(acc)
	require.NoError(t, err)
	assert.Equal(t, Deny, d)

	assert.Equal(t, "allow", Allow.String())
	assert.Equal(t, "deny", Deny.String())
}

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("create: %w", Errorf(KindDuplicateEmail, "email %s is already registered", "a@example.com"))

	assert.True(t, errors.Is(err, ErrDuplicateEmail))
	assert.False(t, errors.Is(err, ErrAccountNotFound))

	var derr *Error
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, KindDuplicateEmail, derr.Kind)
	assert.Equal(t, "email a@example.com is already registered", derr.Error())

	cause := errors.New("connection reset")
	wrapped := Wrap(KindProvisioningFailed, "account provisioning failed", cause)
	assert.ErrorIs(t, wrapped, ErrProvisioningFailed)
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, "account provisioning failed: connection reset", wrapped.Error())
}

func TestValidatePassword(t *testing.T) {
	require.NoError(t, ValidatePassword("secret", "secret"))
	require.ErrorIs(t, ValidatePassword("short", "short"), ErrWeakPassword)
	require.ErrorIs(t, ValidatePassword("secret1", "secret2"), ErrWeakPassword)
}
