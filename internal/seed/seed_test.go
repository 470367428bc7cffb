package seed

import (
	"context"
	stdcsv "encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talentdesk/employer-access/backend/internal/account"
	"github.com/talentdesk/employer-access/backend/internal/account/accounttest"
	"github.com/talentdesk/employer-access/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

func newAdmin(t *testing.T) (*account.Service, *accounttest.MemStore, *domain.Account) {
	t.Helper()

	store := accounttest.NewMemStore()
	svc := account.NewService(store, account.WithHashCost(bcrypt.MinCost))
	admin, err := svc.Bootstrap(context.Background(), domain.Identity{
		FirstName: "System",
		LastName:  "Administrator",
		Email:     "admin@example.com",
		Password:  "admin-password",
		Confirm:   "admin-password",
	})
	require.NoError(t, err)
	return svc, store, admin
}

func TestImportAccounts(t *testing.T) {
	svc, store, admin := newAdmin(t)

	csv := `firstName,lastName,email,role,permissions,password
Ada,Lovelace,ada@example.com,hr_recruitment,"canExportReports, canViewAnalytics",secret1
Grace,Hopper,grace@example.com,management,,
Alan,Turing,admin@example.com,administrator,,
Bad,Role,bad@example.com,owner,,
Bad,Perm,perm@example.com,hr_recruitment,canFly,secret1
Short,Password,short@example.com,hr_recruitment,,abc
`

	result, err := ImportAccounts(context.Background(), svc, admin, strings.NewReader(csv))
	require.NoError(t, err)

	require.Len(t, result.Created, 2)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Failed, 3)
	assert.ErrorIs(t, result.Failed[5], domain.ErrUnknownRole)
	assert.ErrorIs(t, result.Failed[6], domain.ErrUnknownPermission)
	assert.ErrorIs(t, result.Failed[7], domain.ErrWeakPassword)
	assert.Equal(t, 3, store.Len())

	ada := result.Created[0]
	v, err := ada.Permissions.Get(domain.PermViewAnalytics)
	require.NoError(t, err)
	assert.True(t, v)
	assert.NotContains(t, result.Passwords, "ada@example.com")

	// 未提供密码的行会生成随机密码
	require.Contains(t, result.Passwords, "grace@example.com")
	_, err = svc.Authenticate(context.Background(), "grace@example.com", result.Passwords["grace@example.com"])
	require.NoError(t, err)
}

func TestImportAccounts_MalformedRowsDoNotStopImport(t *testing.T) {
	svc, store, admin := newAdmin(t)

	csv := `firstName,lastName,email,role,permissions,password
Ada,Lovelace,ada@example.com,hr_recruitment,canExportReports,secret1
Grace,Hopper,grace@example.com,management
Alan,Turing
Extra,Field,extra@example.com,hr_recruitment,,secret1,surplus
Bad"Quote,Q,quote@example.com,hr_recruitment,,secret1
Linus,Torvalds,linus@example.com,hr_recruitment,,secret1
`

	result, err := ImportAccounts(context.Background(), svc, admin, strings.NewReader(csv))
	require.NoError(t, err)

	// 省略末尾可选列的行照常导入
	require.Len(t, result.Created, 3)
	assert.Equal(t, "ada@example.com", result.Created[0].Email)
	assert.Equal(t, "grace@example.com", result.Created[1].Email)
	assert.Equal(t, "linus@example.com", result.Created[2].Email)
	assert.Contains(t, result.Passwords, "grace@example.com")

	require.Len(t, result.Failed, 3)
	assert.Contains(t, result.Failed[4].Error(), "email")
	assert.Contains(t, result.Failed[5].Error(), "fields")
	var parseErr *stdcsv.ParseError
	assert.ErrorAs(t, result.Failed[6], &parseErr)
	assert.Equal(t, 4, store.Len())
}

func TestImportAccounts_ShortRowBetweenGoodRows(t *testing.T) {
	svc, store, admin := newAdmin(t)

	csv := `firstName,lastName,email,role,permissions,password
Ada,Lovelace,ada@example.com,hr_recruitment,,secret1
Grace,Hopper,grace@example.com,management
Linus,Torvalds,linus@example.com,hr_recruitment,,secret1
`

	result, err := ImportAccounts(context.Background(), svc, admin, strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, result.Created, 3)
	assert.Empty(t, result.Failed)
	assert.Equal(t, "linus@example.com", result.Created[2].Email)
	assert.Equal(t, 4, store.Len())
}

func TestImportAccounts_MissingColumn(t *testing.T) {
	svc, _, admin := newAdmin(t)

	_, err := ImportAccounts(context.Background(), svc, admin, strings.NewReader("firstName,lastName,email\nA,B,c@example.com\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "role")
}

func TestImportAccounts_NotAuthorized(t *testing.T) {
	svc, store, admin := newAdmin(t)

	hr, _, err := svc.CreateAccount(context.Background(), admin, account.CreateAccountInput{
		Identity: domain.Identity{FirstName: "H", LastName: "R", Email: "hr@example.com", Password: "secret1", Confirm: "secret1"},
		Role:     domain.RoleHRRecruitment,
	})
	require.NoError(t, err)

	_, err = ImportAccounts(context.Background(), svc, hr, strings.NewReader("firstName,lastName,email,role\nA,B,c@example.com,hr_recruitment\n"))
	require.ErrorIs(t, err, domain.ErrNotAuthorized)
	assert.Equal(t, 2, store.Len())
}
