package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/talentdesk/employer-access/backend/internal/config"
	"github.com/talentdesk/employer-access/backend/internal/domain"
)

type Repository struct {
	cfg    *config.Config
	dbpool *sql.DB
}

func NewRepository(cfg *config.Config, dbpool *sql.DB) *Repository {
	return &Repository{
		cfg:    cfg,
		dbpool: dbpool,
	}
}

func (r *Repository) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
}

func (r *Repository) transactionContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
}

// 唯一约束名，与建表语句保持一致
const accountsEmailKey = "accounts_email_key"

// 把驱动层错误转换为领域错误，其余错误原样返回
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.Wrap(domain.KindAccountNotFound, "account not found", err)
	case errors.As(err, &pgErr) && pgErr.ConstraintName == accountsEmailKey:
		return domain.Wrap(domain.KindDuplicateEmail, "email is already registered", err)
	default:
		return err
	}
}
