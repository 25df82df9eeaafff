/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"
	"github.com/taskflow/apiserver/internal/apperr"
	"github.com/taskflow/apiserver/internal/db"
	"github.com/taskflow/apiserver/internal/mq"
	"github.com/taskflow/apiserver/internal/services"
	"github.com/taskflow/apiserver/internal/store"
	"github.com/taskflow/apiserver/types"
)

var (
	seedTaskCount int
	seedReset     bool
)

type seedAccount struct {
	name     string
	email    string
	password string
	role     types.Role
}

var seedAccounts = []seedAccount{
	{"Admin User", "admin@example.com", "admin123", types.RoleAdmin},
	{"John Doe", "john@example.com", "user123", types.RoleUser},
	{"Jane Smith", "jane@example.com", "user123", types.RoleUser},
	{"Mike Johnson", "mike@example.com", "user123", types.RoleUser},
}

var seedTitles = []string{
	"Update project documentation",
	"Fix login page styling",
	"Review pull requests",
	"Prepare sprint demo",
	"Write integration tests",
	"Migrate reports to new schema",
	"Plan team offsite",
	"Audit user permissions",
	"Triage support tickets",
	"Refine onboarding checklist",
}

var seedStatuses = []types.TaskStatus{types.TaskPending, types.TaskInProgress, types.TaskCompleted}

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Populate the database with demo accounts and tasks",
	Long: `Creates one admin and three users plus a batch of random tasks.
Existing accounts are reused. Usage:

	taskflow seed --tasks 20
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := loadConfig()
		ctx := logger.WithContext(cmd.Context())

		conn, err := db.Open(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer conn.Close()

		if seedReset {
			if _, err := conn.ExecContext(ctx, `TRUNCATE tasks, users`); err != nil {
				return fmt.Errorf("reset tables: %w", err)
			}
			logger.Info().Msg("tables truncated")
		}

		userRepo := store.NewUserRepository(conn)
		userService := services.NewUserService(userRepo, nil, mq.NewPublisher(nil))
		taskService := services.NewTaskService(store.NewTaskRepository(conn), userRepo, nil, mq.NewPublisher(nil))

		accounts := make([]types.User, 0, len(seedAccounts))
		for _, account := range seedAccounts {
			user, err := ensureAccount(ctx, userService, userRepo, account)
			if err != nil {
				return err
			}
			accounts = append(accounts, user)
			logger.Info().Str("email", user.Email).Str("role", string(user.Role)).Msg("account ready")
		}

		admin := accounts[0]
		for i := 0; i < seedTaskCount; i++ {
			assignee := accounts[rand.IntN(len(accounts))]
			due := time.Now().UTC().AddDate(0, 0, rand.IntN(30)+1)
			if _, err := taskService.Create(ctx, admin, services.TaskInput{
				Title:       seedTitles[rand.IntN(len(seedTitles))],
				Description: fmt.Sprintf("Seeded task %d", i+1),
				Status:      seedStatuses[rand.IntN(len(seedStatuses))],
				AssignedTo:  assignee.ID,
				DueDate:     &due,
			}); err != nil {
				return fmt.Errorf("create task: %w", err)
			}
		}
		logger.Info().Int("tasks", seedTaskCount).Msg("seed complete")
		return nil
	},
}

func ensureAccount(ctx context.Context, users *services.UserService, repo *store.UserRepository, account seedAccount) (types.User, error) {
	user, err := users.Provision(ctx, services.RegisterInput{
		Name:     account.name,
		Email:    account.email,
		Password: account.password,
	}, account.role)
	if err == nil {
		return user, nil
	}
	if apperr.KindOf(err) == apperr.KindValidation && apperr.MessageOf(err) == services.MsgUserExists {
		existing, lookupErr := repo.GetByEmail(ctx, account.email)
		if lookupErr != nil {
			return types.User{}, fmt.Errorf("load %s: %w", account.email, lookupErr)
		}
		return existing, nil
	}
	return types.User{}, fmt.Errorf("provision %s: %w", account.email, err)
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().IntVar(&seedTaskCount, "tasks", 20, "number of random tasks to create")
	seedCmd.Flags().BoolVar(&seedReset, "reset", false, "truncate users and tasks first")
}
