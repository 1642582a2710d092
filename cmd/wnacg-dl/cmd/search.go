package cmd

import (
	"github.com/spf13/cobra"
)

var searchPage int64

var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "Search the gallery site by keyword",
	Args:  cobra.ExactArgs(1),
	RunE:  runE(runSearch),
}

var searchTagCmd = &cobra.Command{
	Use:   "search-tag <tag>",
	Short: "Search the gallery site by tag",
	Args:  cobra.ExactArgs(1),
	RunE:  runE(runSearchTag),
}

func init() {
	searchCmd.Flags().Int64Var(&searchPage, "page", 1, "page number, 1-indexed")
	searchTagCmd.Flags().Int64Var(&searchPage, "page", 1, "page number, 1-indexed")
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(searchTagCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	result, err := globalClient.SearchByKeyword(args[0], searchPage)
	if err != nil {
		return err
	}
	return printResult(result)
}

func runSearchTag(cmd *cobra.Command, args []string) error {
	result, err := globalClient.SearchByTag(args[0], searchPage)
	if err != nil {
		return err
	}
	return printResult(result)
}
