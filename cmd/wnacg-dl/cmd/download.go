package cmd

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"wnacg-downloader/internal/engine"
	"wnacg-downloader/internal/events"
)

var downloadCmd = &cobra.Command{
	Use:   "download <id>",
	Short: "Fetch a comic and download it interactively, with a live progress display",
	Args:  cobra.ExactArgs(1),
	RunE:  runE(runDownload),
}

func init() {
	rootCmd.AddCommand(downloadCmd)
}

// runDownload is the interactive counterpart to submit: it drives a
// dedicated manager whose sink renders a live uilive display, grounded on
// the teacher's cmd_download_worker.go/cmd_images_worker.go progress
// rendering, and blocks until the task reaches a terminal state.
func runDownload(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return err
	}

	comic, err := globalClient.Comic(id)
	if err != nil {
		return err
	}

	liveSink := events.NewUILiveSink()
	defer liveSink.Stop()

	mgr := engine.NewDownloadManager(globalConfig, globalClient, globalDB, globalIndex, events.MultiSink{events.LogSink{}, liveSink})
	defer mgr.Stop()

	mgr.Submit(comic)

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		done := true
		for _, s := range mgr.List() {
			if s.ComicID == id && !s.State.IsTerminal() {
				done = false
			}
		}
		if done {
			break
		}
	}

	for _, s := range mgr.List() {
		if s.ComicID == id {
			return printResult(s)
		}
	}
	return nil
}
