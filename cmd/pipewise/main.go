package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pipewise/pipewise/config"
	srv "github.com/pipewise/pipewise/internal/server"
	"github.com/pipewise/pipewise/internal/store"
)

func main() {
	var root = &cobra.Command{Use: "pipewise"}

	var cfgPath string
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (JSON)")

	var serveAddr string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			if serveAddr == "" {
				serveAddr = os.Getenv("PIPEWISE_HTTP_ADDR")
			}
			return srv.Run(cfg, serveAddr)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")

	var migDir string
	var direction string
	var steps int
	var migrate = &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			dsn, err := cfg.Databases.Postgres.DSN()
			if err != nil {
				return err
			}
			return srv.Migrate(migDir, dsn, direction, steps)
		},
	}
	migrate.Flags().StringVar(&migDir, "dir", "file://migrations", "migrations source (file://migrations)")
	migrate.Flags().StringVar(&direction, "direction", "up", "up or down")
	migrate.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")

	var seedUser string
	var seedContacts int
	var seed = &cobra.Command{
		Use:   "seed",
		Short: "Generate linked test CRM data for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if seedUser == "" {
				return fmt.Errorf("--user required")
			}
			cfg := config.LoadConfig(cfgPath)
			dsn, err := cfg.Databases.Postgres.DSN()
			if err != nil {
				return err
			}
			ctx := context.Background()
			st, err := store.NewWithDSN(ctx, dsn)
			if err != nil {
				return err
			}
			counts, err := st.SeedTestData(ctx, seedUser, seedContacts)
			if err != nil {
				return err
			}
			fmt.Printf("seeded %d companies, %d contacts, %d opportunities, %d activities\n",
				counts.Companies, counts.Contacts, counts.Opportunities, counts.Activities)
			return nil
		},
	}
	seed.Flags().StringVar(&seedUser, "user", "", "user id to seed data for")
	seed.Flags().IntVar(&seedContacts, "contacts", 10, "number of contacts to create (max 50)")

	root.AddCommand(serve, migrate, seed)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
