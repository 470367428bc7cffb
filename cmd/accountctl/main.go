package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/talentdesk/employer-access/backend/internal/account"
	"github.com/talentdesk/employer-access/backend/internal/config"
	"github.com/talentdesk/employer-access/backend/internal/domain"
	"github.com/talentdesk/employer-access/backend/internal/repository"
	"github.com/talentdesk/employer-access/backend/internal/seed"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type app struct {
	accounts *account.Service
	caller   *domain.Account
	out      string
	db       *sql.DB
}

// connect 打开数据库并确定操作者，默认为初始管理员
func (a *app) connect(ctx context.Context, as string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	db, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		return err
	}
	a.db = db

	pingCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}

	a.accounts = account.NewService(repository.NewRepository(cfg, db),
		account.WithPasswordLength(cfg.NewAccount.PasswordLength),
		account.WithProtectedEmail(cfg.InitialAdmin.Email),
	)

	admin, err := a.accounts.Bootstrap(ctx, domain.Identity{
		FirstName: cfg.InitialAdmin.FirstName,
		LastName:  cfg.InitialAdmin.LastName,
		Email:     cfg.InitialAdmin.Email,
		Password:  cfg.InitialAdmin.Password,
		Confirm:   cfg.InitialAdmin.Password,
	})
	if err != nil {
		return err
	}
	a.caller = admin

	if as != "" {
		caller, err := a.accounts.LookupByEmail(ctx, as)
		if err != nil {
			return fmt.Errorf("resolve --as %s: %w", as, err)
		}
		a.caller = caller
	}

	return nil
}

func (a *app) close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}

func (a *app) print(v any) error {
	if a.out == "json" {
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	switch x := v.(type) {
	case []*domain.Account:
		fmt.Fprintln(w, "ID\tEMAIL\tNAME\tROLE\tLEVEL\tACTIVE\tGRANTED")
		for _, acc := range x {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%t\t%d\n", acc.ID, acc.Email, acc.FullName(), acc.Role, acc.AccessLevel, acc.IsActive, len(acc.Permissions.Granted()))
		}
	case *domain.Account:
		fmt.Fprintf(w, "id\t%d\n", x.ID)
		fmt.Fprintf(w, "email\t%s\n", x.Email)
		fmt.Fprintf(w, "name\t%s\n", x.FullName())
		fmt.Fprintf(w, "role\t%s (%s)\n", x.Role, x.Role.Label())
		fmt.Fprintf(w, "access level\t%d\n", x.AccessLevel)
		fmt.Fprintf(w, "active\t%t\n", x.IsActive)
		for _, g := range domain.PermissionGroups() {
			granted := make([]string, 0)
			for _, p := range g.Permissions {
				if ok, _ := x.Permissions.Get(p); ok {
					granted = append(granted, string(p))
				}
			}
			fmt.Fprintf(w, "%s\t%s\n", g.Category, strings.Join(granted, ", "))
		}
	default:
		fmt.Fprintln(w, v)
	}
	return nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid account id %q", s)
	}
	return id, nil
}

func parsePermissions(names []string, value bool) (domain.PermissionOverrides, error) {
	overrides := make(domain.PermissionOverrides, len(names))
	for _, name := range names {
		p, err := domain.ParsePermission(name)
		if err != nil {
			return nil, err
		}
		overrides[p] = value
	}
	return overrides, nil
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	a := &app{}
	var as string

	root := &cobra.Command{
		Use:           "accountctl",
		Short:         "Manage employer accounts and permissions directly against the database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.out != "text" && a.out != "json" {
				return fmt.Errorf("--out must be text or json")
			}
			return a.connect(cmd.Context(), as)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}
	root.PersistentFlags().StringVar(&as, "as", "", "act as this account (email); defaults to the initial administrator")
	root.PersistentFlags().StringVar(&a.out, "out", "text", "output format: text|json")

	// create
	var firstName, lastName, email, role, password string
	var grants []string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account with the role's default permissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := domain.ParseRole(role)
			if err != nil {
				return err
			}
			overrides, err := parsePermissions(grants, true)
			if err != nil {
				return err
			}

			acc, generated, err := a.accounts.CreateAccount(cmd.Context(), a.caller, account.CreateAccountInput{
				Identity: domain.Identity{
					FirstName: firstName,
					LastName:  lastName,
					Email:     email,
					Password:  password,
					Confirm:   password,
				},
				Role:      r,
				Overrides: overrides,
			})
			if err != nil {
				return err
			}
			if generated != "" {
				fmt.Fprintf(os.Stderr, "generated password: %s\n", generated)
			}
			return a.print(acc)
		},
	}
	createCmd.Flags().StringVar(&firstName, "first-name", "", "first name")
	createCmd.Flags().StringVar(&lastName, "last-name", "", "last name")
	createCmd.Flags().StringVar(&email, "email", "", "email")
	createCmd.Flags().StringVar(&role, "role", string(domain.RoleHRRecruitment), "administrator|management|hr_recruitment")
	createCmd.Flags().StringVar(&password, "password", "", "password; generated when empty")
	createCmd.Flags().StringSliceVar(&grants, "grant", nil, "extra permissions to grant, e.g. --grant canExportReports")
	_ = createCmd.MarkFlagRequired("first-name")
	_ = createCmd.MarkFlagRequired("last-name")
	_ = createCmd.MarkFlagRequired("email")

	// list
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts ordered by access level",
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := a.accounts.ListAccounts(cmd.Context(), a.caller)
			if err != nil {
				return err
			}
			return a.print(accounts)
		},
	}

	// show
	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an account and its granted permissions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			acc, err := a.accounts.GetAccount(cmd.Context(), a.caller, id)
			if err != nil {
				return err
			}
			return a.print(acc)
		},
	}

	// grant / revoke
	permissionCmd := func(use, short string, value bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <id> <permission>...",
			Short: short,
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				overrides, err := parsePermissions(args[1:], value)
				if err != nil {
					return err
				}
				acc, err := a.accounts.UpdatePermissions(cmd.Context(), a.caller, id, overrides)
				if err != nil {
					return err
				}
				return a.print(acc)
			},
		}
	}

	// role
	roleCmd := &cobra.Command{
		Use:   "role <id> <role>",
		Short: "Change an account's role; permissions are left unchanged",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			r, err := domain.ParseRole(args[1])
			if err != nil {
				return err
			}
			acc, err := a.accounts.ChangeRole(cmd.Context(), a.caller, id, r)
			if err != nil {
				return err
			}
			return a.print(acc)
		},
	}

	// activate / deactivate
	activeCmd := func(use, short string, active bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				acc, err := a.accounts.SetActive(cmd.Context(), a.caller, id, active)
				if err != nil {
					return err
				}
				return a.print(acc)
			},
		}
	}

	// reset-password
	var newPassword string
	resetCmd := &cobra.Command{
		Use:   "reset-password <id>",
		Short: "Set a new password for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.accounts.ResetPassword(cmd.Context(), a.caller, id, newPassword, newPassword); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		},
	}
	resetCmd.Flags().StringVar(&newPassword, "password", "", "new password")
	_ = resetCmd.MarkFlagRequired("password")

	// delete
	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an account together with its permissions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.accounts.DeleteAccount(cmd.Context(), a.caller, id); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		},
	}

	// import
	importCmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Create accounts from a csv file (firstName,lastName,email,role[,permissions][,password])",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			result, err := seed.ImportAccounts(cmd.Context(), a.accounts, a.caller, f)
			if err != nil {
				return err
			}
			for line, err := range result.Failed {
				fmt.Fprintf(os.Stderr, "line %d: %v\n", line, err)
			}
			for email, password := range result.Passwords {
				fmt.Fprintf(os.Stderr, "generated password for %s: %s\n", email, password)
			}
			fmt.Fprintf(os.Stderr, "created %d, skipped %d, failed %d\n", len(result.Created), result.Skipped, len(result.Failed))
			return a.print(result.Created)
		},
	}

	root.AddCommand(createCmd, listCmd, showCmd, roleCmd, resetCmd, deleteCmd, importCmd)
	root.AddCommand(permissionCmd("grant", "Grant permissions to an account", true))
	root.AddCommand(permissionCmd("revoke", "Revoke permissions from an account", false))
	root.AddCommand(activeCmd("activate", "Activate an account", true))
	root.AddCommand(activeCmd("deactivate", "Deactivate an account; it is denied every action", false))

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		a.close()
		os.Exit(1)
	}
}
