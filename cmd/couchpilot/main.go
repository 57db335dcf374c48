package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/couchpilot/couchpilot/internal/catalog"
	"github.com/couchpilot/couchpilot/internal/config"
	"github.com/couchpilot/couchpilot/internal/database"
	"github.com/couchpilot/couchpilot/internal/discord"
	"github.com/couchpilot/couchpilot/internal/feedback"
	"github.com/couchpilot/couchpilot/internal/pipeline"
	"github.com/couchpilot/couchpilot/internal/server"
	"github.com/couchpilot/couchpilot/internal/tmdb"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "couchpilot",
	Short:   "Daily watch-and-listen recommendations",
	Long:    "CouchPilot checks your calendar, learns your taste, and posts tonight's picks to Discord.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(feedbackCmd)
	rootCmd.AddCommand(serveCmd)
}

// newLogger builds the zap logger from the configured level. --verbose
// forces debug.
func newLogger() *zap.Logger {
	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}

	zc := zap.NewDevelopmentConfig()
	if parsed, err := zap.ParseAtomicLevel(level); err == nil {
		zc.Level = parsed
	}
	log, err := zc.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("couchpilot", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/couchpilot/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure calendars, API keys, and the LLM provider.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show run archive status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println("Runs:")
		fmt.Printf("  Total: %d\n", stats.TotalRuns)
		fmt.Printf("  Completed: %d\n", stats.CompletedRuns)
		fmt.Printf("  Failed: %d\n", stats.FailedRuns)
		fmt.Printf("  Delivered: %d\n", stats.DeliveredRuns)
		if stats.LastRunDate != "" {
			fmt.Printf("\nLast run: %s (%s)\n", stats.LastRunDate, stats.LastRunStatus)
		} else {
			fmt.Println("\nNo runs yet. Start with: couchpilot run")
		}
		return nil
	},
}

// --- run command ---

var (
	noDeliver bool
	depth     string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: calendar -> catalog -> history -> podcasts -> feedback -> synthesize -> compose -> deliver",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		log := newLogger()
		defer log.Sync()

		pipe := pipeline.New(cfg, db, log)
		result, err := pipe.Run(context.Background(), pipeline.Options{
			NoDeliver: noDeliver,
			Depth:     depth,
		})
		if err != nil {
			return err
		}

		total := len(result.Steps)
		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/%d: %s\n", i+1, total, step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}

		fmt.Printf("\nRun %s complete. View it with: couchpilot serve\n", result.RunID)
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&noDeliver, "no-deliver", false, "Compose but do not post to Discord")
	runCmd.Flags().StringVar(&depth, "depth", "", "Override analysis depth (basic, detailed, comprehensive)")
}

// --- catalog command ---

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Preview catalog candidates without running the pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		defer log.Sync()

		client := tmdb.NewClient(os.Getenv(cfg.Catalog.APIKeyEnv))
		collector := catalog.NewCollector(client, tmdb.NewGenreCache(client, log), log)
		doc := collector.Analyze(context.Background(),
			cfg.Catalog.MaxResults, cfg.Catalog.MinRating, cfg.Catalog.FetchDetails)

		return printJSON(doc)
	},
}

// --- feedback command ---

var feedbackDaysBack int

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Preview reaction feedback analysis without running the pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		defer log.Sync()

		client := discord.NewClient(
			os.Getenv(cfg.Discord.BotTokenEnv),
			os.Getenv(cfg.Discord.ChannelIDEnv),
			log,
		)
		analyzer := feedback.NewAnalyzer(client, cfg.Discord.ReactionEmojis, log)

		daysBack := cfg.Discord.DaysBack
		if feedbackDaysBack > 0 {
			daysBack = feedbackDaysBack
		}
		doc := analyzer.Analyze(context.Background(), daysBack)

		return printJSON(doc)
	},
}

func init() {
	feedbackCmd.Flags().IntVar(&feedbackDaysBack, "days-back", 0, "Override lookback window (days)")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server over the run archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		log := newLogger()
		defer log.Sync()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, port, log)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(filepath.Join(dataDir, "couchpilot.db"))
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
