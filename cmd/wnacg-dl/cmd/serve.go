package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"wnacg-downloader/internal/daemon"
	"wnacg-downloader/internal/engine"
	"wnacg-downloader/internal/events"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the resident download manager that submit/pause/resume/cancel/status talk to",
	Long: `serve starts the long-lived DownloadManager that the submit, pause,
resume, cancel and status subcommands act on. Those subcommands are thin
HTTP clients of whatever manager is listening on daemon_addr (default
127.0.0.1:7865): each one is a separate, short-lived process that exits as
soon as its single operation completes, so the task registry and running
downloads need a process that outlives them. Run this in the foreground or
under a supervisor before using those subcommands.`,
	Args: cobra.NoArgs,
	RunE: runE(runServe),
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	mgr := engine.NewDownloadManager(globalConfig, globalClient, globalDB, globalIndex, events.MultiSink{events.LogSink{}})
	defer mgr.Stop()

	httpSrv := &http.Server{
		Addr:    globalConfig.DaemonAddr,
		Handler: daemon.NewServer(mgr).Handler(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("wnacg-dl daemon listening on %s", globalConfig.DaemonAddr)
		serveErr <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down wnacg-dl daemon")
		return httpSrv.Shutdown(context.Background())
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("daemon listener: %w", err)
	}
}
