package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"wnacg-downloader/internal/config"
)

var loginCmd = &cobra.Command{
	Use:   "login <username> <password>",
	Short: "Log in and print the session cookie",
	Args:  cobra.ExactArgs(2),
	RunE:  runE(runLogin),
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	cookie, err := globalClient.Login(args[0], args[1])
	if err != nil {
		return err
	}

	globalConfig.Cookie = cookie
	if err := config.Save(cfgFile, globalConfig); err != nil {
		fmt.Printf("warning: logged in but failed to persist cookie to %s: %v\n", cfgFile, err)
	}

	return printResult(struct {
		Cookie string `json:"cookie"`
	}{Cookie: cookie})
}
