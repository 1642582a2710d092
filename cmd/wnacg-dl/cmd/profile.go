package cmd

import (
	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Fetch the logged-in user's profile",
	Args:  cobra.NoArgs,
	RunE:  runE(runProfile),
}

func init() {
	rootCmd.AddCommand(profileCmd)
}

func runProfile(cmd *cobra.Command, args []string) error {
	profile, err := globalClient.UserProfile(globalConfig.Cookie)
	if err != nil {
		return err
	}
	return printResult(profile)
}
