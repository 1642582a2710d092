package cmd

import (
	"strconv"

	"github.com/spf13/cobra"

	"wnacg-downloader/internal/daemon"
)

var submitCmd = &cobra.Command{
	Use:   "submit <id>",
	Short: "Fetch a comic and enqueue it for download",
	Args:  cobra.ExactArgs(1),
	RunE:  runE(runSubmit),
}

var pauseCmd = &cobra.Command{
	Use:   "pause <id>",
	Short: "Pause a download task",
	Args:  cobra.ExactArgs(1),
	RunE:  runE(runPause),
}

var resumeCmd = &cobra.Command{
	Use:   "resume <id>",
	Short: "Resume a paused or terminal download task",
	Args:  cobra.ExactArgs(1),
	RunE:  runE(runResume),
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Cancel a download task",
	Args:  cobra.ExactArgs(1),
	RunE:  runE(runCancel),
}

func init() {
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(cancelCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return err
	}
	comic, err := globalClient.Comic(id)
	if err != nil {
		return err
	}
	if err := daemon.NewClient(globalConfig.DaemonAddr).Submit(comic); err != nil {
		return err
	}
	return printResult(struct {
		ComicID int64  `json:"comicId"`
		Title   string `json:"title"`
	}{ComicID: comic.ID, Title: comic.Title})
}

func runPause(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return err
	}
	if err := daemon.NewClient(globalConfig.DaemonAddr).Pause(id); err != nil {
		return err
	}
	return printResult(struct {
		ComicID int64 `json:"comicId"`
	}{ComicID: id})
}

func runResume(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return err
	}
	if err := daemon.NewClient(globalConfig.DaemonAddr).Resume(id); err != nil {
		return err
	}
	return printResult(struct {
		ComicID int64 `json:"comicId"`
	}{ComicID: id})
}

func runCancel(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return err
	}
	if err := daemon.NewClient(globalConfig.DaemonAddr).Cancel(id); err != nil {
		return err
	}
	return printResult(struct {
		ComicID int64 `json:"comicId"`
	}{ComicID: id})
}
