package cmd

import (
	"context"
	"strconv"

	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/cobra"
	"github.com/stellar/go/support/log"

	cmdUtils "github.com/stellar/anchor-deposits-processor/cmd/utils"
	"github.com/stellar/anchor-deposits-processor/db"
)

const DBConfigOptionFlagName = "database-url"

type DatabaseCommand struct{}

func (c *DatabaseCommand) Command(globalOptions *cmdUtils.GlobalOptionsType) *cobra.Command {
	cmd := &cobra.Command{
		Use:              "db",
		Short:            "Database related commands",
		PersistentPreRun: cmdUtils.PropagatePersistentPreRun,
		RunE:             cmdUtils.CallHelpCommand,
	}

	migrateCmd := &cobra.Command{
		Use:              "migrate",
		Short:            "Schema migration helpers",
		PersistentPreRun: cmdUtils.PropagatePersistentPreRun,
		RunE:             cmdUtils.CallHelpCommand,
	}

	migrateUpCmd := &cobra.Command{
		Use:              "up",
		Short:            "Migrates database up [count] migrations",
		Args:             cobra.MaximumNArgs(1),
		PersistentPreRun: cmdUtils.PropagatePersistentPreRun,
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			count := parseMigrationCount(ctx, args, 0)
			executeMigrations(ctx, globalOptions.DatabaseURL, migrate.Up, count)
		},
	}

	migrateDownCmd := &cobra.Command{
		Use:              "down [count]",
		Short:            "Migrates database down [count] migrations",
		Args:             cobra.ExactArgs(1),
		PersistentPreRun: cmdUtils.PropagatePersistentPreRun,
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			count := parseMigrationCount(ctx, args, 1)
			executeMigrations(ctx, globalOptions.DatabaseURL, migrate.Down, count)
		},
	}

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	cmd.AddCommand(migrateCmd)
	return cmd
}

func parseMigrationCount(ctx context.Context, args []string, minArgs int) int {
	if len(args) < 1 {
		if minArgs > 0 {
			log.Ctx(ctx).Fatal("Missing [count] argument")
		}
		return 0
	}

	count, err := strconv.Atoi(args[0])
	if err != nil {
		log.Ctx(ctx).Fatalf("Invalid [count] argument: %s", args[0])
	}
	return count
}

func executeMigrations(ctx context.Context, dbURL string, dir migrate.MigrationDirection, count int) {
	numMigrationsRun, err := db.Migrate(dbURL, dir, count)
	if err != nil {
		log.Ctx(ctx).Fatalf("Error migrating database: %v", err)
	}

	if numMigrationsRun == 0 {
		log.Ctx(ctx).Info("No migrations applied.")
	} else {
		log.Ctx(ctx).Infof("Successfully applied %d migrations %s.", numMigrationsRun, migrationDirectionStr(dir))
	}
}

// migrationDirectionStr returns a string representation of the migration direction (up or down).
func migrationDirectionStr(dir migrate.MigrationDirection) string {
	if dir == migrate.Up {
		return "up"
	}
	return "down"
}
