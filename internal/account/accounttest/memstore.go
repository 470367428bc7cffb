// Package accounttest 提供 account.Store 的内存实现，供 service 和 handler 的测试使用
package accounttest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/talentdesk/employer-access/backend/internal/domain"
)

type MemStore struct {
	mu       sync.Mutex
	nextID   int64
	accounts map[int64]domain.Account

	// 为 true 时 CreateAccount 在写入权限这一步失败，用于模拟事务回滚
	FailPermissionsWrite bool
}

func NewMemStore() *MemStore {
	return &MemStore{
		nextID:   1,
		accounts: make(map[int64]domain.Account),
	}
}

func (s *MemStore) CreateAccount(ctx context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.emailTaken(account.Email, 0) {
		return domain.Errorf(domain.KindDuplicateEmail, "email %s is already registered", account.Email)
	}
	if s.FailPermissionsWrite {
		// 与数据库事务一致：两行都不写入，也不消耗 id
		return domain.Errorf(domain.KindProvisioningFailed, "account provisioning failed")
	}

	account.ID = s.nextID
	account.CreatedAt = time.Now()
	account.Version = 1
	s.nextID++
	s.accounts[account.ID] = *account

	return nil
}

func (s *MemStore) GetAccountByID(ctx context.Context, id int64) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, domain.Errorf(domain.KindAccountNotFound, "account %d not found", id)
	}
	return &account, nil
}

func (s *MemStore) GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, account := range s.accounts {
		if account.Email == email {
			return &account, nil
		}
	}
	return nil, domain.Errorf(domain.KindAccountNotFound, "account %s not found", email)
}

func (s *MemStore) GetAllAccounts(ctx context.Context) ([]*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.Account, 0, len(s.accounts))
	for _, account := range s.accounts {
		a := account
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AccessLevel != out[j].AccessLevel {
			return out[i].AccessLevel < out[j].AccessLevel
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemStore) CheckEmailIfExists(ctx context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.emailTaken(email, 0), nil
}

// UpdateAccount 不修改权限，version 不一致时返回 account_modified
func (s *MemStore) UpdateAccount(ctx context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.accounts[account.ID]
	if !ok || current.Version != account.Version {
		return domain.Errorf(domain.KindAccountModified, "account was modified concurrently, please retry")
	}
	if s.emailTaken(account.Email, account.ID) {
		return domain.Errorf(domain.KindDuplicateEmail, "email %s is already registered", account.Email)
	}

	updated := *account
	updated.Permissions = current.Permissions
	updated.CreatedAt = current.CreatedAt
	updated.Version = current.Version + 1
	s.accounts[account.ID] = updated

	account.Permissions = current.Permissions
	account.CreatedAt = current.CreatedAt
	account.Version = updated.Version
	return nil
}

func (s *MemStore) MergePermissions(ctx context.Context, id int64, overrides domain.PermissionOverrides) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, domain.Errorf(domain.KindAccountNotFound, "account %d not found", id)
	}
	if err := account.Permissions.Merge(overrides); err != nil {
		return nil, err
	}
	if len(overrides) > 0 {
		account.Version++
	}
	s.accounts[id] = account

	return &account, nil
}

func (s *MemStore) DeleteAccount(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[id]; !ok {
		return domain.Errorf(domain.KindAccountNotFound, "account %d not found", id)
	}
	delete(s.accounts, id)
	return nil
}

// Len 返回当前保存的账户数量
func (s *MemStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.accounts)
}

func (s *MemStore) emailTaken(email string, except int64) bool {
	for id, account := range s.accounts {
		if id != except && account.Email == email {
			return true
		}
	}
	return false
}
