package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/talentdesk/employer-access/backend/internal/domain"
)

// 权限列顺序与 domain.Permissions() 一致
var permissionColumns = func() []string {
	perms := domain.Permissions()
	cols := make([]string, len(perms))
	for i, p := range perms {
		cols[i] = p.Column()
	}
	return cols
}()

var selectAccountQuery = func() string {
	cols := make([]string, len(permissionColumns))
	for i, c := range permissionColumns {
		cols[i] = "p." + c
	}
	return `
		SELECT a.id, a.first_name, a.last_name, a.email, a.password_hash, a.role,
			a.access_level, a.is_active, a.created_at, a.version, ` + strings.Join(cols, ", ") + `
		FROM accounts a
		JOIN account_permissions p ON p.account_id = a.id
	`
}()

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	account := &domain.Account{}
	flags := make([]bool, len(permissionColumns))

	dst := []any{&account.ID, &account.FirstName, &account.LastName, &account.Email, &account.PasswordHash, &account.Role,
		&account.AccessLevel, &account.IsActive, &account.CreatedAt, &account.Version}
	for i := range flags {
		dst = append(dst, &flags[i])
	}

	if err := row.Scan(dst...); err != nil {
		return nil, err
	}

	permissions, err := domain.PermissionSetFromValues(flags)
	if err != nil {
		return nil, err
	}
	account.Permissions = permissions

	return account, nil
}

func placeholders(from, n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(ps, ", ")
}

// CreateAccount 在一个事务中写入账户和权限，任何一步失败都会回滚，不会留下孤立的记录
func (r *Repository) CreateAccount(ctx context.Context, account *domain.Account) error {
	ctx, cancel := r.transactionContext(ctx)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return domain.Wrap(domain.KindProvisioningFailed, "account provisioning failed", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO accounts (first_name, last_name, email, password_hash, role, access_level, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, version
	`
	args := []any{account.FirstName, account.LastName, account.Email, account.PasswordHash, account.Role, account.AccessLevel, account.IsActive}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&account.ID, &account.CreatedAt, &account.Version); err != nil {
		if mapped := mapError(err); errors.Is(mapped, domain.ErrDuplicateEmail) {
			return mapped
		}
		return domain.Wrap(domain.KindProvisioningFailed, "account provisioning failed", err)
	}

	query = fmt.Sprintf(`
		INSERT INTO account_permissions (account_id, %s)
		VALUES ($1, %s)
	`, strings.Join(permissionColumns, ", "), placeholders(2, len(permissionColumns)))

	args = []any{account.ID}
	for _, v := range account.Permissions.Values() {
		args = append(args, v)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return domain.Wrap(domain.KindProvisioningFailed, "account provisioning failed", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Wrap(domain.KindProvisioningFailed, "account provisioning failed", err)
	}

	return nil
}

func (r *Repository) GetAccountByID(ctx context.Context, id int64) (*domain.Account, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	account, err := scanAccount(r.dbpool.QueryRowContext(ctx, selectAccountQuery+" WHERE a.id = $1", id))
	if err != nil {
		return nil, mapError(err)
	}

	return account, nil
}

func (r *Repository) GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	account, err := scanAccount(r.dbpool.QueryRowContext(ctx, selectAccountQuery+" WHERE a.email = $1", email))
	if err != nil {
		return nil, mapError(err)
	}

	return account, nil
}

func (r *Repository) GetAllAccounts(ctx context.Context) ([]*domain.Account, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, selectAccountQuery+" ORDER BY a.access_level, a.id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := make([]*domain.Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return accounts, nil
}

func (r *Repository) CheckEmailIfExists(ctx context.Context, email string) (bool, error) {
	isExists := false

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	query := `
		SELECT EXISTS (SELECT 1 FROM accounts WHERE email = $1)
	`
	if err := r.dbpool.QueryRowContext(ctx, query, email).Scan(&isExists); err != nil {
		return false, err
	}

	return isExists, nil
}

// UpdateAccount 使用 version 做乐观锁，不修改权限
func (r *Repository) UpdateAccount(ctx context.Context, account *domain.Account) error {
	query := `
		UPDATE accounts
		SET
			first_name = $1,
			last_name = $2,
			email = $3,
			password_hash = $4,
			role = $5,
			access_level = $6,
			is_active = $7,
			version = version + 1
		WHERE id = $8 AND version = $9
		RETURNING created_at, version
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	args := []any{account.FirstName, account.LastName, account.Email, account.PasswordHash, account.Role,
		account.AccessLevel, account.IsActive, account.ID, account.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&account.CreatedAt, &account.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Wrap(domain.KindAccountModified, "account was modified concurrently, please retry", err)
		}
		return mapError(err)
	}

	return nil
}

// MergePermissions 在同一个事务中锁定并读取当前权限、合并、写回，
// 并发的合并请求会依次执行而不会相互覆盖
func (r *Repository) MergePermissions(ctx context.Context, id int64, overrides domain.PermissionOverrides) (*domain.Account, error) {
	ctx, cancel := r.transactionContext(ctx)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	account, err := scanAccount(tx.QueryRowContext(ctx, selectAccountQuery+" WHERE a.id = $1 FOR UPDATE", id))
	if err != nil {
		return nil, mapError(err)
	}

	if err := account.Permissions.Merge(overrides); err != nil {
		return nil, err
	}

	if len(overrides) > 0 {
		names := domain.SortedNames(overrides)
		sets := make([]string, len(names))
		args := []any{id}
		for i, name := range names {
			p := domain.Permission(name)
			sets[i] = fmt.Sprintf("%s = $%d", p.Column(), i+2)
			args = append(args, overrides[p])
		}

		query := fmt.Sprintf(`UPDATE account_permissions SET %s WHERE account_id = $1`, strings.Join(sets, ", "))
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return nil, err
		}

		query = `
			UPDATE accounts SET version = version + 1
			WHERE id = $1
			RETURNING version
		`
		if err := tx.QueryRowContext(ctx, query, id).Scan(&account.Version); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return account, nil
}

// DeleteAccount 在一个事务中同时删除权限和账户
func (r *Repository) DeleteAccount(ctx context.Context, id int64) error {
	ctx, cancel := r.transactionContext(ctx)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM account_permissions WHERE account_id = $1`, id); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.Errorf(domain.KindAccountNotFound, "account %d not found", id)
	}

	return tx.Commit()
}
