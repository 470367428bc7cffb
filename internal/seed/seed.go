package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/talentdesk/employer-access/backend/internal/account"
	"github.com/talentdesk/employer-access/backend/internal/domain"
)

// 必须存在的列，permissions 和 password 列可选
var requiredHeaders = []string{"firstName", "lastName", "email", "role"}

type ImportResult struct {
	Created []*domain.Account
	// 邮箱已存在的行
	Skipped int
	// 其余出错的行，key 为行号（表头为第 1 行）
	Failed map[int]error
	// 管理员未提供密码时生成的随机密码，key 为邮箱
	Passwords map[string]string
}

// ImportAccounts 从 CSV 批量创建账户，每一行单独提交，一行失败不影响其他行。
//
// permissions 列为以逗号分隔的额外授权，例如 "canExportReports, canViewAnalytics"。
func ImportAccounts(ctx context.Context, svc *account.Service, caller *domain.Account, r io.Reader) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	// 可选列允许省略，列数不对的行记为失败
	reader.FieldsPerRecord = -1

	// 读取表头
	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}
	for _, h := range requiredHeaders {
		if !slices.Contains(headers, h) {
			return nil, fmt.Errorf("missing column %q", h)
		}
	}

	result := &ImportResult{
		Created:   make([]*domain.Account, 0),
		Failed:    make(map[int]error),
		Passwords: make(map[string]string),
	}

	for {
		row, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			// 引号不匹配等格式错误只影响当前记录，可以继续读取
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				slog.Error("failed to import account", "line", parseErr.StartLine, "error", err)
				result.Failed[parseErr.StartLine] = err
				continue
			}
			return result, fmt.Errorf("read csv: %w", err)
		}
		line, _ := reader.FieldPos(0)

		if len(row) > len(headers) {
			err := fmt.Errorf("line %d has %d fields, header has %d", line, len(row), len(headers))
			slog.Error("failed to import account", "line", line, "error", err)
			result.Failed[line] = err
			continue
		}

		record := make(map[string]string)
		for i, value := range row {
			record[headers[i]] = strings.TrimSpace(value)
		}
		if missing := missingRequired(record); missing != "" {
			err := fmt.Errorf("line %d is missing column %q", line, missing)
			slog.Error("failed to import account", "line", line, "error", err)
			result.Failed[line] = err
			continue
		}

		acc, generated, err := importRow(ctx, svc, caller, record)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrDuplicateEmail):
				// 账户已存在，不处理
				result.Skipped++
			case errors.Is(err, domain.ErrNotAuthorized):
				// 调用者没有权限时后面的行也不会成功
				return result, err
			default:
				slog.Error("failed to import account", "line", line, "email", record["email"], "error", err)
				result.Failed[line] = err
			}
			continue
		}

		result.Created = append(result.Created, acc)
		if generated != "" {
			result.Passwords[acc.Email] = generated
		}
	}

	slog.Info("account import finished", "created", len(result.Created), "skipped", result.Skipped, "failed", len(result.Failed))
	return result, nil
}

func missingRequired(record map[string]string) string {
	for _, h := range requiredHeaders {
		if _, ok := record[h]; !ok {
			return h
		}
	}
	return ""
}

func importRow(ctx context.Context, svc *account.Service, caller *domain.Account, record map[string]string) (*domain.Account, string, error) {
	role, err := domain.ParseRole(record["role"])
	if err != nil {
		return nil, "", err
	}

	overrides := make(domain.PermissionOverrides)
	for _, name := range strings.Split(record["permissions"], ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		p, err := domain.ParsePermission(name)
		if err != nil {
			return nil, "", err
		}
		overrides[p] = true
	}

	return svc.CreateAccount(ctx, caller, account.CreateAccountInput{
		Identity: domain.Identity{
			FirstName: record["firstName"],
			LastName:  record["lastName"],
			Email:     record["email"],
			Password:  record["password"],
			Confirm:   record["password"],
		},
		Role:      role,
		Overrides: overrides,
	})
}
