package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/koba/db-migrate/internal/config"
	"github.com/koba/db-migrate/internal/database"
	"github.com/koba/db-migrate/internal/generator"
	"github.com/koba/db-migrate/internal/migrations"
	"github.com/koba/db-migrate/internal/models"
)

var (
	modelsFile       string
	migrationDir     string
	databaseConfig   string
	warningsDisabled bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dbmigrate",
	Short: "Model-driven database migration tool",
	Long:  `A tool to generate schema migrations from model declarations and apply them to a database.`,
}

var makeMigrationsCmd = &cobra.Command{
	Use:   "makemigrations [name]",
	Short: "Generate a migration from the current model declarations",
	Long:  `Diff the declared models against the recorded migration history and write a new migration file for the difference.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMakeMigrations,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations to the database",
	Long:  `Order the recorded migrations and execute every one not yet present in the database's history table.`,
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	makeMigrationsCmd.Flags().StringVar(&modelsFile, "models-file", "./.models.json", "Location of the intermediate representation of models")
	makeMigrationsCmd.Flags().StringVarP(&migrationDir, "migration-dir", "m", "./migrations/", "Destination to / from which migrations are written / read")
	makeMigrationsCmd.Flags().BoolVar(&warningsDisabled, "disable-warnings", false, "If set, no warnings will be printed")

	migrateCmd.Flags().StringVarP(&migrationDir, "migration-dir", "m", "./migrations/", "Destination to / from which migrations are written / read")
	migrateCmd.Flags().StringVar(&databaseConfig, "database-config", "./database.toml", "Path to the database configuration file")

	rootCmd.AddCommand(makeMigrationsCmd)
	rootCmd.AddCommand(migrateCmd)
}

func runMakeMigrations(cmd *cobra.Command, args []string) error {
	label := ""
	if len(args) > 0 {
		label = args[0]
	}

	target, err := models.Load(modelsFile)
	if err != nil {
		return fmt.Errorf("failed to load models: %w", err)
	}

	if err := os.MkdirAll(migrationDir, 0755); err != nil {
		return fmt.Errorf("failed to create migration directory: %w", err)
	}

	existing, warnings, err := migrations.ScanDir(migrationDir)
	if err != nil {
		return fmt.Errorf("failed to read existing migrations: %w", err)
	}
	printWarnings(warnings)

	result, err := generator.Generate(migrationDir, target, existing, label)
	if err != nil {
		return fmt.Errorf("failed to generate migration: %w", err)
	}

	if !result.Created {
		fmt.Println("No changes detected, nothing to do.")
		return nil
	}

	for _, op := range result.Migration.Operations {
		fmt.Printf("  %s\n", generator.Describe(op))
	}
	fmt.Printf("Created migration %s\n", result.Path)
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(databaseConfig)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := database.New(cfg.DatabaseConfig())
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	if err := db.Connect(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	records, warnings, err := migrations.ScanDir(migrationDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	printWarnings(warnings)

	ordered, err := migrations.Order(records)
	if err != nil {
		return fmt.Errorf("invalid migration history: %w", err)
	}

	applied, err := db.AppliedIDs()
	if err != nil {
		return fmt.Errorf("failed to read migration history: %w", err)
	}

	renderer, err := generator.NewSQLRenderer(db.Dialect())
	if err != nil {
		return err
	}

	pending := 0
	for _, m := range ordered {
		if applied[m.ID] {
			continue
		}
		statements, err := renderer.RenderMigration(m)
		if err != nil {
			return err
		}
		if err := db.Apply(m.ID, statements); err != nil {
			return err
		}
		fmt.Printf("Applied %s\n", m.ID)
		pending++
	}

	if pending == 0 {
		fmt.Println("Database is up to date.")
	}
	return nil
}

func printWarnings(warnings []string) {
	if warningsDisabled {
		return
	}
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}
}
