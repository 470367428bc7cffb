package account

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/talentdesk/employer-access/backend/internal/domain"
	"github.com/talentdesk/employer-access/backend/internal/metrics"
	"github.com/talentdesk/employer-access/backend/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

type Service struct {
	store          Store
	validate       *validator.Validate
	hashCost       int
	passwordLength int
	protectedEmail string
}

type Option func(*Service)

// 测试中可以使用 bcrypt.MinCost 加速
func WithHashCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

// 管理员创建账户且未指定密码时生成的随机密码长度
func WithPasswordLength(n int) Option {
	return func(s *Service) { s.passwordLength = n }
}

// 受保护的账户（初始管理员）不能被停用、删除或降级
func WithProtectedEmail(email string) Option {
	return func(s *Service) { s.protectedEmail = normalizeEmail(email) }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:          store,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		hashCost:       bcrypt.DefaultCost,
		passwordLength: 12,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateAccountInput struct {
	Identity  domain.Identity
	Role      domain.Role
	Overrides domain.PermissionOverrides
}

// CreateAccount 创建账户并按角色注入默认权限。
//
// caller 为 nil 表示自助注册：角色固定为 hr_recruitment，且不允许携带额外授权。
// 否则 caller 必须拥有 canAddUsers。管理员未指定密码时会生成随机密码，
// 并通过第二个返回值交给调用方（用于邮件通知），其余情况下该值为空。
func (s *Service) CreateAccount(ctx context.Context, caller *domain.Account, in CreateAccountInput) (*domain.Account, string, error) {
	origin := "admin"
	generated := ""

	if caller == nil {
		origin = "self"
		if in.Role != "" && in.Role != domain.RoleHRRecruitment {
			return nil, "", domain.Errorf(domain.KindNotAuthorized, "self registration is limited to the %s role", domain.RoleHRRecruitment)
		}
		if len(in.Overrides) > 0 {
			return nil, "", domain.Errorf(domain.KindNotAuthorized, "self registration cannot grant permissions")
		}
		in.Role = domain.RoleHRRecruitment
	} else if err := s.authorize(caller, domain.PermAddUsers); err != nil {
		return nil, "", err
	}

	// 1. 校验身份信息
	identity, err := s.normalizeIdentity(in.Identity)
	if err != nil {
		return nil, "", err
	}

	if caller != nil && identity.Password == "" {
		generated, err = utils.GenerateRandomPassword(s.passwordLength)
		if err != nil {
			return nil, "", err
		}
		identity.Password = generated
		identity.Confirm = generated
	}
	if err := domain.ValidatePassword(identity.Password, identity.Confirm); err != nil {
		return nil, "", err
	}

	exists, err := s.store.CheckEmailIfExists(ctx, identity.Email)
	if err != nil {
		return nil, "", err
	}
	if exists {
		return nil, "", domain.Errorf(domain.KindDuplicateEmail, "email %s is already registered", identity.Email)
	}

	// 2. 按角色取默认权限（副本）
	accessLevel, permissions, err := domain.DefaultsFor(in.Role)
	if err != nil {
		return nil, "", err
	}

	// 3. 合并显式授权
	if err := permissions.Merge(in.Overrides); err != nil {
		return nil, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(identity.Password), s.hashCost)
	if err != nil {
		return nil, "", err
	}

	account := &domain.Account{
		FirstName:    identity.FirstName,
		LastName:     identity.LastName,
		Email:        identity.Email,
		PasswordHash: string(hash),
		Role:         in.Role,
		AccessLevel:  accessLevel,
		IsActive:     true,
		Permissions:  permissions,
	}

	// 4. 账户和权限在同一个事务中写入
	if err := s.store.CreateAccount(ctx, account); err != nil {
		if !errors.Is(err, domain.ErrDuplicateEmail) {
			metrics.ProvisioningFailures.Inc()
		}
		return nil, "", err
	}

	metrics.AccountsProvisioned.WithLabelValues(string(account.Role), origin).Inc()
	slog.Info("account provisioned", "id", account.ID, "role", account.Role, "origin", origin)

	return account, generated, nil
}

// Bootstrap 保证初始管理员存在，已存在时原样返回，不修改其权限
func (s *Service) Bootstrap(ctx context.Context, identity domain.Identity) (*domain.Account, error) {
	existing, err := s.store.GetAccountByEmail(ctx, normalizeEmail(identity.Email))
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, domain.ErrAccountNotFound):
		return nil, err
	}

	identity, err = s.normalizeIdentity(identity)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidatePassword(identity.Password, identity.Confirm); err != nil {
		return nil, err
	}

	accessLevel, permissions, err := domain.DefaultsFor(domain.RoleAdministrator)
	if err != nil {
		return nil, err
	}
	if err := permissions.Merge(domain.AllGranted()); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(identity.Password), s.hashCost)
	if err != nil {
		return nil, err
	}

	account := &domain.Account{
		FirstName:    identity.FirstName,
		LastName:     identity.LastName,
		Email:        identity.Email,
		PasswordHash: string(hash),
		Role:         domain.RoleAdministrator,
		AccessLevel:  accessLevel,
		IsActive:     true,
		Permissions:  permissions,
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		// 多个实例同时启动时可能撞上唯一约束，此时重新读取即可
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return s.store.GetAccountByEmail(ctx, identity.Email)
		}
		return nil, err
	}

	metrics.AccountsProvisioned.WithLabelValues(string(account.Role), "bootstrap").Inc()
	return account, nil
}

// UpdatePermissions 只修改 overrides 中出现的权限，合并在存储层的事务内完成
func (s *Service) UpdatePermissions(ctx context.Context, caller *domain.Account, id int64, overrides domain.PermissionOverrides) (*domain.Account, error) {
	if err := s.authorize(caller, domain.PermManagePermissions); err != nil {
		return nil, err
	}
	for p := range overrides {
		if !p.Valid() {
			return nil, domain.Errorf(domain.KindUnknownPermission, "unknown permission %q", p)
		}
	}

	// 不能收回自己或初始管理员的 canManagePermissions
	if grant, ok := overrides[domain.PermManagePermissions]; ok && !grant {
		if caller.ID == id {
			return nil, domain.Errorf(domain.KindNotAuthorized, "cannot revoke %s from your own account", domain.PermManagePermissions)
		}
		target, err := s.store.GetAccountByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if s.isProtected(target) {
			return nil, domain.Errorf(domain.KindNotAuthorized, "cannot revoke %s from the initial administrator", domain.PermManagePermissions)
		}
	}

	account, err := s.store.MergePermissions(ctx, id, overrides)
	if err != nil {
		return nil, err
	}

	slog.Info("permissions updated", "id", id, "by", caller.ID, "keys", domain.SortedNames(overrides))
	return account, nil
}

func (s *Service) ResetPassword(ctx context.Context, caller *domain.Account, id int64, password, confirm string) error {
	if err := s.authorize(caller, domain.PermResetPasswords); err != nil {
		return err
	}
	if err := domain.ValidatePassword(password, confirm); err != nil {
		return err
	}

	account, err := s.store.GetAccountByID(ctx, id)
	if err != nil {
		return err
	}

	return s.setPassword(ctx, account, password)
}

// AccountChanges 中为 nil 的字段保持不变
type AccountChanges struct {
	FirstName *string
	LastName  *string
	Role      *domain.Role
	IsActive  *bool
}

// UpdateAccount 逐字段检查权限：姓名需要 canAddUsers，角色需要 canManagePermissions，
// 启用/停用需要 canDeleteUsers。修改角色只更新角色和权限等级，不会重置权限。
func (s *Service) UpdateAccount(ctx context.Context, caller *domain.Account, id int64, changes AccountChanges) (*domain.Account, error) {
	if changes == (AccountChanges{}) {
		return s.GetAccount(ctx, caller, id)
	}

	if changes.FirstName != nil || changes.LastName != nil {
		if err := s.authorize(caller, domain.PermAddUsers); err != nil {
			return nil, err
		}
	}
	if changes.Role != nil {
		if err := s.authorize(caller, domain.PermManagePermissions); err != nil {
			return nil, err
		}
		if !changes.Role.Valid() {
			return nil, domain.Errorf(domain.KindUnknownRole, "unknown role %q", *changes.Role)
		}
	}
	if changes.IsActive != nil {
		if err := s.authorize(caller, domain.PermDeleteUsers); err != nil {
			return nil, err
		}
		if !*changes.IsActive && caller.ID == id {
			return nil, domain.Errorf(domain.KindNotAuthorized, "cannot deactivate your own account")
		}
	}

	account, err := s.store.GetAccountByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.isProtected(account) {
		demoted := changes.Role != nil && *changes.Role != account.Role
		deactivated := changes.IsActive != nil && !*changes.IsActive
		if demoted || deactivated {
			return nil, domain.Errorf(domain.KindNotAuthorized, "the initial administrator cannot be demoted or deactivated")
		}
	}

	if changes.FirstName != nil {
		name := strings.TrimSpace(*changes.FirstName)
		if name == "" {
			return nil, domain.Errorf(domain.KindInvalidIdentity, "first name is required")
		}
		account.FirstName = name
	}
	if changes.LastName != nil {
		name := strings.TrimSpace(*changes.LastName)
		if name == "" {
			return nil, domain.Errorf(domain.KindInvalidIdentity, "last name is required")
		}
		account.LastName = name
	}
	if changes.Role != nil {
		accessLevel, _, err := domain.DefaultsFor(*changes.Role)
		if err != nil {
			return nil, err
		}
		account.Role = *changes.Role
		account.AccessLevel = accessLevel
	}
	if changes.IsActive != nil {
		account.IsActive = *changes.IsActive
	}

	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return nil, err
	}

	return account, nil
}

func (s *Service) ChangeRole(ctx context.Context, caller *domain.Account, id int64, role domain.Role) (*domain.Account, error) {
	return s.UpdateAccount(ctx, caller, id, AccountChanges{Role: &role})
}

func (s *Service) SetActive(ctx context.Context, caller *domain.Account, id int64, active bool) (*domain.Account, error) {
	return s.UpdateAccount(ctx, caller, id, AccountChanges{IsActive: &active})
}

// DeleteAccount 由存储层级联删除账户及其权限
func (s *Service) DeleteAccount(ctx context.Context, caller *domain.Account, id int64) error {
	if err := s.authorize(caller, domain.PermDeleteUsers); err != nil {
		return err
	}
	if caller.ID == id {
		return domain.Errorf(domain.KindNotAuthorized, "cannot delete your own account")
	}

	account, err := s.store.GetAccountByID(ctx, id)
	if err != nil {
		return err
	}
	if s.isProtected(account) {
		return domain.Errorf(domain.KindNotAuthorized, "the initial administrator cannot be deleted")
	}

	if err := s.store.DeleteAccount(ctx, id); err != nil {
		return err
	}

	slog.Info("account deleted", "id", id, "by", caller.ID)
	return nil
}

var viewerPermissions = []domain.Permission{
	domain.PermAddUsers,
	domain.PermManagePermissions,
	domain.PermManageTeam,
}

func (s *Service) ListAccounts(ctx context.Context, caller *domain.Account) ([]*domain.Account, error) {
	if err := s.authorize(caller, viewerPermissions...); err != nil {
		return nil, err
	}
	return s.store.GetAllAccounts(ctx)
}

func (s *Service) GetAccount(ctx context.Context, caller *domain.Account, id int64) (*domain.Account, error) {
	if caller != nil && caller.ID == id && caller.IsActive {
		return caller, nil
	}
	if err := s.authorize(caller, viewerPermissions...); err != nil {
		return nil, err
	}
	return s.store.GetAccountByID(ctx, id)
}

// Authenticate 校验邮箱和密码，停用的账户不能登录
func (s *Service) Authenticate(ctx context.Context, email, password string) (*domain.Account, error) {
	account, err := s.store.GetAccountByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !account.IsActive {
		return nil, domain.Errorf(domain.KindNotAuthorized, "account is deactivated")
	}

	return account, nil
}

// Lookup 供认证中间件和找回密码流程使用，不做权限检查
func (s *Service) Lookup(ctx context.Context, id int64) (*domain.Account, error) {
	return s.store.GetAccountByID(ctx, id)
}

func (s *Service) LookupByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return s.store.GetAccountByEmail(ctx, normalizeEmail(email))
}

func (s *Service) ChangeOwnPassword(ctx context.Context, account *domain.Account, oldPassword, newPassword, confirm string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(oldPassword)); err != nil {
		return domain.ErrInvalidCredentials
	}
	if err := domain.ValidatePassword(newPassword, confirm); err != nil {
		return err
	}
	return s.setPassword(ctx, account, newPassword)
}

// SetPasswordByEmail 在验证码校验通过后调用
func (s *Service) SetPasswordByEmail(ctx context.Context, email, password, confirm string) error {
	if err := domain.ValidatePassword(password, confirm); err != nil {
		return err
	}
	account, err := s.store.GetAccountByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	return s.setPassword(ctx, account, password)
}

func (s *Service) ValidateNewEmail(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return "", domain.Errorf(domain.KindInvalidIdentity, "email %q is not valid", email)
	}
	exists, err := s.store.CheckEmailIfExists(ctx, email)
	if err != nil {
		return "", err
	}
	if exists {
		return "", domain.Errorf(domain.KindDuplicateEmail, "email %s is already registered", email)
	}
	return email, nil
}

func (s *Service) ChangeOwnEmail(ctx context.Context, account *domain.Account, email string) error {
	email, err := s.ValidateNewEmail(ctx, email)
	if err != nil {
		return err
	}
	account.Email = email
	return s.store.UpdateAccount(ctx, account)
}

// Authorize 是唯一的鉴权决策点，同时记录指标
func (s *Service) Authorize(caller *domain.Account, perms ...domain.Permission) domain.Decision {
	return s.authorize(caller, perms...) == nil
}

func (s *Service) authorize(caller *domain.Account, perms ...domain.Permission) error {
	decision, err := domain.AuthorizeAny(caller, perms...)
	if err != nil {
		return err
	}

	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = string(p)
	}
	label := strings.Join(names, "|")
	metrics.AuthorizationDecisions.WithLabelValues(label, decision.String()).Inc()

	if decision == domain.Deny {
		return domain.Errorf(domain.KindNotAuthorized, "requires %s", strings.Join(names, " or "))
	}
	return nil
}

func (s *Service) setPassword(ctx context.Context, account *domain.Account, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return err
	}
	account.PasswordHash = string(hash)
	return s.store.UpdateAccount(ctx, account)
}

func (s *Service) isProtected(account *domain.Account) bool {
	return s.protectedEmail != "" && account.Email == s.protectedEmail
}

func (s *Service) normalizeIdentity(identity domain.Identity) (domain.Identity, error) {
	identity.FirstName = strings.TrimSpace(identity.FirstName)
	identity.LastName = strings.TrimSpace(identity.LastName)
	identity.Email = normalizeEmail(identity.Email)

	if identity.FirstName == "" || identity.LastName == "" {
		return identity, domain.Errorf(domain.KindInvalidIdentity, "first and last name are required")
	}
	if err := s.validate.Var(identity.Email, "required,email"); err != nil {
		return identity, domain.Errorf(domain.KindInvalidIdentity, "email %q is not valid", identity.Email)
	}
	return identity, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
