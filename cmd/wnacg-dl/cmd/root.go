// Package cmd implements the wnacg-dl command facade: one cobra subcommand
// per SiteClient/DownloadManager operation, grounded on the teacher's
// cmd/civitai-downloader/cmd package (root.go's PersistentPreRunE config
// loading, initLogging's level/format setup).
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"wnacg-downloader/internal/apperrors"
	"wnacg-downloader/internal/config"
	"wnacg-downloader/internal/index"
	"wnacg-downloader/internal/models"
	"wnacg-downloader/internal/siteclient"
	"wnacg-downloader/internal/store"

	"github.com/blevesearch/bleve/v2"
)

var (
	cfgFile      string
	logLevelFlag string
	cookieFlag   string
)

var (
	globalConfig models.Config
	globalClient *siteclient.Client
	globalDB     *store.DB
	globalIndex  bleve.Index
	appLogFile   *os.File
)

var rootCmd = &cobra.Command{
	Use:   "wnacg-dl",
	Short: "Download and manage comics from the configured gallery site",
	Long: `wnacg-dl fetches gallery listings, searches and favorites from the
configured site, and downloads comics concurrently with pause/resume/cancel
control, a local search index and a download record store.`,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

// Execute runs the root command, printing a structured error facade and
// exiting non-zero on failure, per SPEC_FULL.md §6/§7.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printErr(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.toml", "configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&cookieFlag, "cookie", "", "session cookie override")
	viper.BindPFlag("cookie", rootCmd.PersistentFlags().Lookup("cookie"))
}

// setup loads the configuration, wires logging and constructs the shared
// client/store/index used by every subcommand. serve and download each
// build their own DownloadManager on top of these, rather than sharing one
// built here, since a manager's task registry must outlive a single
// subcommand invocation to be useful (see internal/daemon).
func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return err
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("WNACG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if cookieFlag != "" {
		cfg.Cookie = cookieFlag
	} else if v := viper.GetString("cookie"); v != "" {
		cfg.Cookie = v
	}
	if logLevelFlag != "" {
		cfg.LogLevel = logLevelFlag
	}

	if err := initLogging(cfg); err != nil {
		return err
	}

	globalConfig = cfg

	var apiLogPath string
	if cfg.EnableFileLogger {
		apiLogPath = filepath.Join(filepath.Dir(cfg.StoreDir), "api.log")
	}
	client, err := siteclient.New(apiLogPath)
	if err != nil {
		return fmt.Errorf("initializing site client: %w", err)
	}
	globalClient = client

	db, err := store.Open(cfg.StoreDir)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	globalDB = db

	idx, err := index.OpenOrCreateIndex(cfg.IndexDir)
	if err != nil {
		return fmt.Errorf("opening search index: %w", err)
	}
	globalIndex = idx

	return nil
}

// teardown releases the resources setup acquired, best-effort.
func teardown(cmd *cobra.Command, args []string) error {
	if globalIndex != nil {
		if err := globalIndex.Close(); err != nil {
			log.WithError(err).Warn("error closing search index")
		}
	}
	if globalDB != nil {
		if err := globalDB.Close(); err != nil {
			log.WithError(err).Warn("error closing store")
		}
	}
	if appLogFile != nil {
		appLogFile.Close()
	}
	return nil
}

// initLogging configures logrus from cfg.LogLevel, additionally tee-ing
// output to app.log in the parent directory of cfg.StoreDir when
// EnableFileLogger is set. Grounded on
// the teacher's cmd_download_setup.go initLogging.
func initLogging(cfg models.Config) error {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithError(err).Warnf("invalid log level %q, using info", cfg.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if !cfg.EnableFileLogger {
		return nil
	}

	logDir := filepath.Dir(cfg.StoreDir)
	if err := os.MkdirAll(logDir, 0o700); err != nil {
		return fmt.Errorf("creating log directory %s: %w", logDir, err)
	}
	f, err := os.OpenFile(filepath.Join(logDir, "app.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("opening app log file: %w", err)
	}
	appLogFile = f
	log.SetOutput(io.MultiWriter(os.Stderr, f))
	return nil
}

// printResult marshals v as pretty JSON to stdout, per the command facade's
// "typed JSON result on stdout" contract.
func printResult(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling result: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// printErr writes the structured {title, chain} error facade to stderr.
func printErr(err error) {
	facade := apperrors.NewFacade(err)
	data, marshalErr := json.MarshalIndent(facade, "", "  ")
	if marshalErr != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return
	}
	fmt.Fprintln(os.Stderr, string(data))
}

// runE wraps a subcommand body so cobra's RunE contract surfaces errors
// through printErr/os.Exit(1) via Execute, rather than cobra's own usage dump.
func runE(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		return fn(cmd, args)
	}
}
