package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rexlx/lrmsforum/config"
	"github.com/rexlx/lrmsforum/forum"
)

var (
	cfg     *config.Config
	forumDB *forum.Database
	dbPath  string
)

var rootCmd = &cobra.Command{
	Use:   "forum",
	Short: "Community forum with direct messaging",
	Long: `A small community forum: categories, threads, posts with images,
direct messages between users and a handful of admin tools.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if dbPath != "" {
			cfg.DBPath = dbPath
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if forumDB != nil {
			return forumDB.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "sqlite database file path (overrides DB_PATH)")
}

// openDatabase connects, creates the schema and seeds defaults.
func openDatabase(ctx context.Context) (*forum.Database, error) {
	db, err := forum.NewDatabase(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("could not initialize database: %w", err)
	}
	db.SetBcryptCost(cfg.BcryptCost)
	if err := db.CreateTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not create tables: %w", err)
	}
	if err := db.Seed(ctx, cfg.AdminPassword); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not seed database: %w", err)
	}
	forumDB = db
	return db, nil
}
