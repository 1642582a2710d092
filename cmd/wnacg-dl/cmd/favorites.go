package cmd

import (
	"github.com/spf13/cobra"
)

var (
	favoritesShelf int64
	favoritesPage  int64
)

var favoritesCmd = &cobra.Command{
	Use:   "favorites",
	Short: "List a favorites shelf",
	Args:  cobra.NoArgs,
	RunE:  runE(runFavorites),
}

func init() {
	favoritesCmd.Flags().Int64Var(&favoritesShelf, "shelf", 0, "shelf id, 0 for the default shelf")
	favoritesCmd.Flags().Int64Var(&favoritesPage, "page", 1, "page number, 1-indexed")
	rootCmd.AddCommand(favoritesCmd)
}

func runFavorites(cmd *cobra.Command, args []string) error {
	result, err := globalClient.Favorites(globalConfig.Cookie, favoritesShelf, favoritesPage)
	if err != nil {
		return err
	}
	return printResult(result)
}
