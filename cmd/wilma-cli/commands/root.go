package commands

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"wilma-backend/lib/configutil"
	"wilma-backend/lib/messagestore"
	"wilma-backend/lib/messagestore/db"
	"wilma-backend/services/wilma"

	scraper "wilma-backend/lib/scrapers/wilma"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

type Config struct {
	// base url of the portal instance, e.g. https://school.inschool.fi
	BaseUrl  string `json:"base_url"`
	Username string `json:"username"`
	Password string `json:"password"`
}

var rootCmd = &cobra.Command{
	Use:   "wilma-cli",
	Short: "wilma-cli reads schedules and messages off a Wilma portal.",
}

var archiveDb *string

func init() {
	archiveDb = rootCmd.PersistentFlags().String(
		"archive-db", "",
		"Archive read messages to this sqlite database.",
	)
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func fatal(message string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %s\n", message, err)
	os.Exit(1)
}

// config comes from a wilma.json5 found in the working directory or
// above it, with WILMA_* environment variables taking precedence
func loadConfig() Config {
	cfg, err := configutil.ReadRecursively[Config]("wilma.json5")
	if err != nil && !os.IsNotExist(err) {
		fatal("failed to read config", err)
	}

	if v := os.Getenv("WILMA_BASE_URL"); v != "" {
		cfg.BaseUrl = v
	}
	if v := os.Getenv("WILMA_USERNAME"); v != "" {
		cfg.Username = v
	}
	if v := os.Getenv("WILMA_PASSWORD"); v != "" {
		cfg.Password = v
	}

	if cfg.BaseUrl == "" || cfg.Username == "" || cfg.Password == "" {
		fmt.Fprintln(os.Stderr, "base_url, username and password must be set, either in wilma.json5 or through WILMA_BASE_URL/WILMA_USERNAME/WILMA_PASSWORD")
		os.Exit(1)
	}
	return cfg
}

func createService() wilma.Service {
	cfg := loadConfig()

	client, err := scraper.NewClient(scraper.ClientOptions{
		BaseUrl:  cfg.BaseUrl,
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err != nil {
		fatal("failed to initialize portal client", err)
	}

	var store *messagestore.Store
	if *archiveDb != "" {
		sqlite, err := sql.Open("sqlite", *archiveDb)
		if err != nil {
			fatal("failed to open archive database", err)
		}
		if _, err := sqlite.Exec(db.Schema); err != nil {
			fatal("failed to initialize archive database", err)
		}
		s := messagestore.NewStore(sqlite)
		store = &s
	}

	return wilma.NewService(client, cfg.Username, store)
}
