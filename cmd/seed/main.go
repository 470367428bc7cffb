package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/talentdesk/employer-access/backend/internal/account"
	"github.com/talentdesk/employer-access/backend/internal/config"
	"github.com/talentdesk/employer-access/backend/internal/domain"
	"github.com/talentdesk/employer-access/backend/internal/repository"
	"github.com/talentdesk/employer-access/backend/internal/seed"
	"github.com/talentdesk/employer-access/backend/internal/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var op int
	var n int
	var file string

	flag.IntVar(&op, "op", 0, "operation (1: insert random accounts, 2: randomize permissions of existing accounts, 3: import accounts from csv)")
	flag.IntVar(&n, "n", 5, "number of records to insert, or overrides per account for op 2")
	flag.StringVar(&file, "file", "", "csv file for op 3")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 读取配置
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 创建数据库连接池
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("failed to connect to database", "error", err)
		return
	}

	repo := repository.NewRepository(cfg, dbpool)
	accounts := account.NewService(repo,
		account.WithPasswordLength(cfg.NewAccount.PasswordLength),
		account.WithProtectedEmail(cfg.InitialAdmin.Email),
	)

	// 所有操作都以初始管理员的身份执行，和 API 走同样的鉴权
	admin, err := accounts.Bootstrap(context.Background(), domain.Identity{
		FirstName: cfg.InitialAdmin.FirstName,
		LastName:  cfg.InitialAdmin.LastName,
		Email:     cfg.InitialAdmin.Email,
		Password:  cfg.InitialAdmin.Password,
		Confirm:   cfg.InitialAdmin.Password,
	})
	if err != nil {
		logger.Error("failed to bootstrap initial administrator", "error", err)
		return
	}

	switch op {
	case 0:
		slog.Error("no operation specified")
	case 1:
		if n <= 0 {
			slog.Error("n must be positive")
			return
		}

		cnt := 0
		for i := 0; i < n; i++ {
			identity := utils.GenerateRandomIdentity(cfg.Seed.Account.Password, cfg.Seed.Account.Domain)
			acc, _, err := accounts.CreateAccount(context.Background(), admin, account.CreateAccountInput{
				Identity:  identity,
				Role:      utils.GenerateRandomRole(),
				Overrides: utils.GenerateRandomOverrides(2),
			})
			if err != nil {
				slog.Error("failed to insert account", "email", identity.Email, slog.String("error", err.Error()))
				continue
			}

			slog.Info("account inserted", "id", acc.ID, "email", acc.Email, "role", acc.Role)
			cnt++
		}

		slog.Info("random accounts inserted", slog.Int("count", cnt))
	case 2:
		if n <= 0 {
			slog.Error("n must be positive")
			return
		}

		all, err := accounts.ListAccounts(context.Background(), admin)
		if err != nil {
			slog.Error("failed to list accounts", slog.String("error", err.Error()))
			return
		}

		cnt := 0
		for _, acc := range all {
			if acc.ID == admin.ID {
				continue
			}
			if _, err := accounts.UpdatePermissions(context.Background(), admin, acc.ID, utils.GenerateRandomOverrides(n)); err != nil {
				slog.Error("failed to update permissions", "id", acc.ID, slog.String("error", err.Error()))
				continue
			}
			cnt++
		}

		slog.Info("permissions randomized", slog.Int("count", cnt))
	case 3:
		f, err := os.Open(file)
		if err != nil {
			slog.Error("failed to open file", "file", file, "error", err)
			return
		}
		defer f.Close()

		result, err := seed.ImportAccounts(context.Background(), accounts, admin, f)
		if err != nil {
			slog.Error("failed to import accounts", "error", err)
			return
		}
		for email, password := range result.Passwords {
			slog.Info("generated password", "email", email, "password", password)
		}
	default:
		slog.Error("unknown operation")
	}
}
