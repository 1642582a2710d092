package cmd

import (
	"github.com/spf13/cobra"

	"wnacg-downloader/internal/daemon"
	"wnacg-downloader/internal/index"
	"wnacg-downloader/internal/models"
)

var listQuery string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List downloaded comics, or search them with --query",
	Args:  cobra.NoArgs,
	RunE:  runE(runList),
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show live download task progress",
	Args:  cobra.NoArgs,
	RunE:  runE(runStatus),
}

func init() {
	listCmd.Flags().StringVar(&listQuery, "query", "", "full-text filter against the search index (title, category, tags, intro)")
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statusCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	if listQuery != "" {
		result, err := index.Search(globalIndex, listQuery)
		if err != nil {
			return err
		}
		return printResult(result)
	}

	entries, err := globalDB.ListEntries()
	if err != nil {
		return err
	}

	completed := make([]models.DatabaseEntry, 0, len(entries))
	for _, e := range entries {
		if e.Status == models.StateCompleted {
			completed = append(completed, e)
		}
	}
	return printResult(completed)
}

func runStatus(cmd *cobra.Command, args []string) error {
	snapshots, err := daemon.NewClient(globalConfig.DaemonAddr).List()
	if err != nil {
		return err
	}
	return printResult(snapshots)
}
