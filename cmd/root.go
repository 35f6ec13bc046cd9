// file: cmd/root.go
// version: 1.3.0
// guid: 1d8f5b2a-7e4c-4a9d-b6e3-0f2c8a5d7b4e

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/laosuan/BookPlayer/internal/command"
	"github.com/laosuan/BookPlayer/internal/config"
	"github.com/laosuan/BookPlayer/internal/database"
	"github.com/laosuan/BookPlayer/internal/library"
	"github.com/laosuan/BookPlayer/internal/operations"
	"github.com/laosuan/BookPlayer/internal/scanner"
	"github.com/laosuan/BookPlayer/internal/server"
	syncengine "github.com/laosuan/BookPlayer/internal/sync"
	"github.com/laosuan/BookPlayer/internal/watcher"
)

var cfgFile string
var processedRoot string
var databasePath string
var databaseType string
var enableSQLite bool
var remoteURL string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bookplayer",
	Short: "Manage a hierarchical audiobook library",
	Long: `BookPlayer manages a folder tree of audiobooks backed by a metadata
store: import new files, reorder and move items, track playback progress and
bookmarks, and reconcile the tree with a remote copy.`,
}

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import <paths...>",
	Short: "Import files and folders into the library",
	Long:  `Import audio files or whole folders into the library tree, moving them under the processed root.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, store, err := openLibrary()
		if err != nil {
			return err
		}
		defer store.Close()

		into, _ := cmd.Flags().GetString("into")

		bar := progressbar.Default(-1, "importing")
		imported, err := svc.ImportFiles(cmd.Context(), args, into, func(item database.Item) {
			_ = bar.Add(1)
		})
		_ = bar.Finish()
		fmt.Println()
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		fmt.Printf("Imported %d items into %q\n", len(imported), displayFolder(into))
		return nil
	},
}

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list [folder]",
	Short: "List the contents of a library folder",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, store, err := openLibrary()
		if err != nil {
			return err
		}
		defer store.Close()

		folder := ""
		if len(args) > 0 {
			folder = args[0]
		}

		items, err := svc.FetchContents(folder, 0, 0)
		if err != nil {
			return fmt.Errorf("failed to list %q: %w", folder, err)
		}

		fmt.Printf("Contents of %q (%d items):\n", displayFolder(folder), len(items))
		for _, item := range items {
			marker := " "
			if item.IsFolder() {
				marker = "/"
			}
			fmt.Printf("  %3d  %s%s  (%.0f%%)\n", item.OrderRank, item.Title, marker, item.ProgressPercent())
		}
		return nil
	},
}

// moveCmd represents the move command
var moveCmd = &cobra.Command{
	Use:   "move <paths...>",
	Short: "Move items into a folder or reorder them in place",
	Long: `Move items into the folder given by --into (empty for the library root).
With --at, items are inserted at that position; moving within the current
parent reorders the siblings without touching files on disk.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, store, err := openLibrary()
		if err != nil {
			return err
		}
		defer store.Close()

		into, _ := cmd.Flags().GetString("into")
		var atIndex *int
		if cmd.Flags().Changed("at") {
			at, _ := cmd.Flags().GetInt("at")
			atIndex = &at
		}

		result, err := svc.MoveItems(cmd.Context(), args, into, atIndex)
		if err != nil {
			return fmt.Errorf("move failed: %w", err)
		}
		return reportBatch(cmd, result)
	},
}

// deleteCmd represents the delete command
var deleteCmd = &cobra.Command{
	Use:   "delete <paths...>",
	Short: "Delete items from the library",
	Long: `Delete items and their backing files. --mode deep removes folders with
every descendant; --mode shallow promotes a folder's children one level up
before removing the folder itself.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, store, err := openLibrary()
		if err != nil {
			return err
		}
		defer store.Close()

		mode, _ := cmd.Flags().GetString("mode")
		if mode != string(library.DeleteModeDeep) && mode != string(library.DeleteModeShallow) {
			return fmt.Errorf("invalid mode %q: use deep or shallow", mode)
		}

		result, err := svc.DeleteItems(cmd.Context(), args, library.DeleteMode(mode))
		if err != nil {
			return fmt.Errorf("delete failed: %w", err)
		}
		return reportBatch(cmd, result)
	},
}

// renameCmd represents the rename command
var renameCmd = &cobra.Command{
	Use:   "rename <path> <title>",
	Short: "Change an item's display title",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, store, err := openLibrary()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := svc.RenameItem(args[0], args[1]); err != nil {
			return fmt.Errorf("rename failed: %w", err)
		}
		fmt.Printf("Renamed %q to %q\n", args[0], args[1])
		return nil
	},
}

// reportBatch prints a batch outcome and fails the command on any per-item
// failure, after the successes are already applied.
func reportBatch(cmd *cobra.Command, result *library.BatchResult) error {
	for _, path := range result.Succeeded {
		fmt.Printf("  ok    %s\n", path)
	}
	for _, failure := range result.Failed {
		fmt.Printf("  fail  %s: %s\n", failure.RelativePath, failure.Message)
	}
	if !result.Ok() {
		return fmt.Errorf("%d of %d items failed", len(result.Failed), len(result.Succeeded)+len(result.Failed))
	}
	return nil
}

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync [folder]",
	Short: "Reconcile a library folder with the remote copy",
	RunE: func(cmd *cobra.Command, args []string) error {
		if config.AppConfig.RemoteURL == "" {
			return fmt.Errorf("remote URL not configured")
		}

		svc, store, err := openLibrary()
		if err != nil {
			return err
		}
		defer store.Close()

		folder := ""
		if len(args) > 0 {
			folder = args[0]
		}
		force, _ := cmd.Flags().GetBool("force")

		client := syncengine.NewHTTPClient(config.AppConfig.RemoteURL)
		engine := syncengine.NewEngine(svc, client, nil, config.AppConfig.SyncMinInterval)

		fmt.Printf("Syncing %q against %s\n", displayFolder(folder), config.AppConfig.RemoteURL)
		err = engine.ResolveLastBook(engine.SyncListContents(cmd.Context(), folder, force))

		var reload *syncengine.ErrReloadLastBook
		var different *syncengine.ErrDifferentLastBook
		switch {
		case errors.As(err, &reload):
			fmt.Printf("Last-played book updated to %s\n", reload.Path)
			return nil
		case errors.As(err, &different):
			fmt.Printf("Remote last-played book differs from the loaded one: %s\n", different.Path)
			return nil
		case err != nil:
			return fmt.Errorf("sync failed: %w", err)
		}

		fmt.Println("Sync complete")
		return nil
	},
}

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  `Start the HTTP server exposing the library tree, playback state, and async operations.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, store, err := openLibrary()
		if err != nil {
			return err
		}
		defer store.Close()

		workers := config.AppConfig.Workers
		if w, _ := cmd.Flags().GetInt("workers"); w > 0 {
			workers = w
		}
		queue := operations.NewQueue(workers)
		defer func() {
			if err := queue.Shutdown(30 * time.Second); err != nil {
				fmt.Printf("Warning: operation queue shutdown error: %v\n", err)
			}
		}()
		fmt.Printf("Operation queue initialized with %d workers\n", workers)

		var engine *syncengine.Engine
		if config.AppConfig.RemoteURL != "" {
			client := syncengine.NewHTTPClient(config.AppConfig.RemoteURL)
			engine = syncengine.NewEngine(svc, client, nil, config.AppConfig.SyncMinInterval)
			fmt.Printf("Sync enabled against %s\n", config.AppConfig.RemoteURL)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if config.AppConfig.WatchEnabled {
			w := watcher.New(func(rootDir string) {
				id := operations.NewOperationID()
				_ = queue.Enqueue(id, "import", operations.PriorityLow, func(opCtx context.Context, progress operations.ProgressReporter) error {
					entries, scanErr := scanner.ListContents(rootDir)
					if scanErr != nil {
						return scanErr
					}
					var fresh []string
					for _, entry := range entries {
						item, getErr := svc.GetItem(filepath.Base(entry))
						if getErr != nil {
							return getErr
						}
						if item == nil {
							fresh = append(fresh, entry)
						}
					}
					if len(fresh) == 0 {
						return nil
					}
					_, importErr := svc.ImportFiles(opCtx, fresh, "", nil)
					return importErr
				})
			}, func(name string) bool {
				return config.IsSupportedExtension(strings.ToLower(filepath.Ext(name)))
			}, config.AppConfig.WatchDebounce)
			if err := w.Start(config.AppConfig.ProcessedRoot); err != nil {
				return fmt.Errorf("failed to start watcher: %w", err)
			}
			defer w.Stop()
			fmt.Printf("Watching %s\n", config.AppConfig.ProcessedRoot)
		}

		addr := config.AppConfig.ListenAddr
		if flagAddr, _ := cmd.Flags().GetString("addr"); flagAddr != "" {
			addr = flagAddr
		}

		// No player, downloader, or sleep timer runs in the server process;
		// the router drops their commands with a log line. The sync engine
		// handles refresh when a remote is configured.
		var refresher command.Refresher
		if engine != nil {
			refresher = engine
		}
		commands := command.NewRouter(svc, nil, nil, nil, refresher)

		srv := server.NewServer(svc, engine, queue, commands)
		return srv.Start(ctx, addr)
	},
}

// openLibrary initializes the store from config and wraps it in a service.
func openLibrary() (*library.Service, database.Store, error) {
	if config.AppConfig.ProcessedRoot == "" {
		return nil, nil, fmt.Errorf("processed root not specified")
	}

	store, err := database.InitializeStore(config.AppConfig.DatabaseType, config.AppConfig.DatabasePath, config.AppConfig.EnableSQLite)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	fmt.Printf("Using database: %s (%s)\n", config.AppConfig.DatabasePath, config.AppConfig.DatabaseType)
	return library.NewService(store, config.AppConfig.ProcessedRoot), store, nil
}

func displayFolder(folder string) string {
	if folder == "" {
		return "library root"
	}
	return folder
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.bookplayer.yaml)")
	rootCmd.PersistentFlags().StringVar(&processedRoot, "root", "", "processed root directory holding the library")
	rootCmd.PersistentFlags().StringVar(&databasePath, "db", "", "path to database (default: <root>/.bookplayer.db)")
	rootCmd.PersistentFlags().StringVar(&databaseType, "db-type", "pebble", "database type: pebble (default) or sqlite")
	rootCmd.PersistentFlags().BoolVar(&enableSQLite, "enable-sqlite3-i-know-the-risks", false, "enable SQLite3 database (WARNING: cross-compilation issues, PebbleDB recommended)")
	rootCmd.PersistentFlags().StringVar(&remoteURL, "remote", "", "base URL of the sync backend")

	viper.BindPFlag("processed_root", rootCmd.PersistentFlags().Lookup("root"))
	viper.BindPFlag("database_path", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("database_type", rootCmd.PersistentFlags().Lookup("db-type"))
	viper.BindPFlag("enable_sqlite3_i_know_the_risks", rootCmd.PersistentFlags().Lookup("enable-sqlite3-i-know-the-risks"))
	viper.BindPFlag("remote_url", rootCmd.PersistentFlags().Lookup("remote"))

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(serveCmd)

	importCmd.Flags().String("into", "", "destination folder inside the library")
	moveCmd.Flags().String("into", "", "destination folder (empty for the library root)")
	moveCmd.Flags().Int("at", 0, "insertion index inside the destination")
	deleteCmd.Flags().String("mode", "deep", "delete mode: deep or shallow")
	syncCmd.Flags().Bool("force", false, "ignore the minimum sync interval")
	serveCmd.Flags().String("addr", "", "listen address (default from config)")
	serveCmd.Flags().Int("workers", 0, "number of background operation workers")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".bookplayer")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}

	// Ensure database directory exists
	if databasePath != "" {
		dbDir := filepath.Dir(databasePath)
		if dbDir != "." {
			if err := os.MkdirAll(dbDir, 0755); err != nil {
				fmt.Printf("Error creating database directory: %v\n", err)
			}
		}
	}

	config.InitConfig()
}
