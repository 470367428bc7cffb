package account

import (
	"context"

	"github.com/talentdesk/employer-access/backend/internal/domain"
)

// Store 由 repository.Repository 实现。
//
// CreateAccount 必须在同一个事务中写入账户和权限两行，要么都成功要么都不写入；
// MergePermissions 必须在读取当前权限的同一个事务中完成合并和写回。
type Store interface {
	CreateAccount(ctx context.Context, account *domain.Account) error
	GetAccountByID(ctx context.Context, id int64) (*domain.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetAllAccounts(ctx context.Context) ([]*domain.Account, error)
	CheckEmailIfExists(ctx context.Context, email string) (bool, error)
	UpdateAccount(ctx context.Context, account *domain.Account) error
	MergePermissions(ctx context.Context, id int64, overrides domain.PermissionOverrides) (*domain.Account, error)
	DeleteAccount(ctx context.Context, id int64) error
}
