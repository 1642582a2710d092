package cmd

import (
	"errors"
	"strconv"

	"github.com/spf13/cobra"

	"wnacg-downloader/internal/apperrors"
	"wnacg-downloader/internal/models"
)

var comicCmd = &cobra.Command{
	Use:   "comic <id>",
	Short: "Fetch a comic's metadata and image list",
	Args:  cobra.ExactArgs(1),
	RunE:  runE(runComic),
}

func init() {
	rootCmd.AddCommand(comicCmd)
}

func runComic(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return err
	}
	comic, err := globalClient.Comic(id)
	if err != nil {
		return err
	}

	// IsDownloaded is transient and never part of the manifest; it is
	// filled in here from the store's terminal-state record rather than
	// carried on the wire from the scraper, which has no notion of it.
	entry, err := globalDB.GetEntry(id)
	switch {
	case err == nil:
		downloaded := entry.Status == models.StateCompleted
		comic.IsDownloaded = &downloaded
	case errors.Is(err, apperrors.ErrNotFound):
		downloaded := false
		comic.IsDownloaded = &downloaded
	default:
		return err
	}

	return printResult(comic)
}
