package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/huyquang-bka/ptz-chp/src/api"
	"github.com/spf13/cobra"
)

var (
	username string
	password string
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with the backend",
	Long: `Requests a token pair with the password grant and stores it in the
session file, so the agent and the other commands can call the backend.

Example:
  ptz-agent login --username operator --password secret`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		client := api.New(api.ConfigFrom(cfg.API), api.NewFileSessionStore(cfg.SessionFile))

		fmt.Printf("Authenticating against %s as user '%s'...\n", client.FullURL(cfg.API.LoginRoute), username)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.API.Timeout())
		defer cancel()
		_, user, err := client.Login(ctx, username, password)
		if err != nil {
			fmt.Printf("Login failed: %v\n", err)
			os.Exit(1)
		}

		if jsonOutput {
			printJSON(user)
			return
		}
		fmt.Printf("Logged in as %s. Session saved to %s\n", user.FullName, cfg.SessionFile)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		api.New(api.ConfigFrom(cfg.API), api.NewFileSessionStore(cfg.SessionFile)).Logout()
		fmt.Println("Session cleared.")
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)

	loginCmd.Flags().StringVarP(&username, "username", "u", "", "Backend username")
	loginCmd.Flags().StringVarP(&password, "password", "p", "", "Backend password")
	_ = loginCmd.MarkFlagRequired("username")
	_ = loginCmd.MarkFlagRequired("password")
}
