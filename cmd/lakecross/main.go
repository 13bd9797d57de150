package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/divijg19/lakecross/internal/config"
	"github.com/divijg19/lakecross/internal/puzzle"
	"github.com/divijg19/lakecross/internal/storage"
)

// Version is the current CLI version string.
const Version = "v0.1"

// app carries what every subcommand shares after the root pre-run.
type app struct {
	configPath string
	logLevel   string
	cfg        config.Config
	logger     *slog.Logger
}

func main() {
	a := &app{}
	root := newRootCmd(a)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "lakecross",
		Short: "Lakecross: ferry the priests and carnivores across the lake",
		Long: `Lakecross is the lake-crossing puzzle: three priests and three carnivores wait on
the left shore with a boat that carries two. Carnivores must never outnumber priests on
either shore. Every game is recorded, and the recorded sessions can be summarised.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/lakecross/config.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newPlayCmd(a),
		newSessionsCmd(a),
		newBestCmd(a),
		newRecentCmd(a),
		newAnalyticsCmd(a),
		newExportCmd(a),
		newServeCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		// config edit must still work on a broken file.
		if cmd.Name() != "edit" && cmd.Name() != "config" {
			return err
		}
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
	}
	a.cfg = cfg

	level := a.cfg.Log.Level
	if a.logLevel != "" {
		level = a.logLevel
	}
	a.logger = newLogger(level, a.cfg.Log.Format)
	slog.SetDefault(a.logger)

	switch cmd.Name() {
	case "version", "help", "play", "config", "edit":
	default:
		a.bestScoreNotice(cmd.Context())
	}
	return nil
}

func newLogger(level, format string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// bestScoreNotice prints only when the stored best score changed since it was last shown.
func (a *app) bestScoreNotice(ctx context.Context) {
	st, closeDB, err := a.openStore()
	if err != nil {
		return
	}
	defer closeDB()
	best, ok, err := st.BestScore(ctx)
	if err != nil || !ok {
		return
	}
	if st.DidBestScoreChange(ctx, best) {
		fmt.Fprintf(os.Stderr, "New best: solved in %d crossings. Run: lakecross best\n", best)
	}
}

// openStore opens the SQLite-backed store and returns a close function.
func (a *app) openStore() (*storage.Store, func(), error) {
	var err error

	dbPath := a.cfg.Store.Path
	if dbPath == "" {
		dbPath, err = storage.ResolveDBPath()
		if err != nil {
			return nil, nil, fmt.Errorf("resolve db path: %w", err)
		}
	}

	sqlDB, err := storage.Open(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}

	var st *storage.Store
	st, err = storage.New(sqlDB)
	if err != nil {
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("new store: %w", err)
	}

	closeFn := func() {
		_ = sqlDB.Close()
	}
	return st, closeFn, nil
}

func (a *app) engine() (*puzzle.Engine, error) {
	return puzzle.NewEngine(config.EngineRules(a.cfg))
}

// hintCacheDir returns the configured cache directory or the XDG cache location.
func (a *app) hintCacheDir() (string, error) {
	if a.cfg.Hints.CacheDir != "" {
		return a.cfg.Hints.CacheDir, nil
	}
	if dir := strings.TrimSpace(os.Getenv("XDG_CACHE_HOME")); dir != "" {
		return filepath.Join(dir, "lakecross", "hints"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", "lakecross", "hints"), nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Aliases: []string{"v"},
		Short:   "Show version",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Lakecross "+Version)
		},
	}
}
