package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alfredjeanlab/lensdesk/internal/client"
	"github.com/alfredjeanlab/lensdesk/internal/model"
	"github.com/alfredjeanlab/lensdesk/internal/ui"
	"github.com/spf13/cobra"
)

// readCredentials takes the email from --email and the password from
// LENSDESK_PASSWORD or an interactive prompt.
func readCredentials(cmd *cobra.Command) (string, string, error) {
	email, _ := cmd.Flags().GetString("email")
	if email == "" {
		return "", "", fmt.Errorf("--email is required")
	}
	if pw := os.Getenv("LENSDESK_PASSWORD"); pw != "" {
		return email, pw, nil
	}
	pw, err := ui.ReadPassword("Password: ")
	if err != nil {
		return "", "", fmt.Errorf("reading password: %w", err)
	}
	return email, pw, nil
}

func finishSignIn(res *client.SessionResult) error {
	email := ""
	if res.Session != nil {
		email = res.Session.Email
	}
	if err := rememberSession(httpURL, res.Token, email); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	if jsonOutput {
		return printJSON(res)
	}
	printSession(res)
	return nil
}

var signupCmd = &cobra.Command{
	Use:     "signup",
	Short:   "Create a customer account and sign in",
	GroupID: "account",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, pw, err := readCredentials(cmd)
		if err != nil {
			return err
		}
		res, err := apiClient.SignUp(context.Background(), email, pw)
		if err != nil {
			return fmt.Errorf("signing up: %w", err)
		}
		return finishSignIn(res)
	},
}

var loginCmd = &cobra.Command{
	Use:     "login",
	Short:   "Sign in and save the session to the active profile",
	GroupID: "account",
	Long: `Sign in with email and password.

With --portal, the account must hold that role: signing in to the admin
portal with a customer-only account fails and no session is issued.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		portalFlag, _ := cmd.Flags().GetString("portal")
		var portal model.Role
		if portalFlag != "" {
			r, err := model.ParseRole(portalFlag)
			if err != nil {
				return err
			}
			portal = r
		}
		email, pw, err := readCredentials(cmd)
		if err != nil {
			return err
		}
		res, err := apiClient.SignIn(context.Background(), email, pw, portal)
		if err != nil {
			return fmt.Errorf("signing in: %w", err)
		}
		return finishSignIn(res)
	},
}

var logoutCmd = &cobra.Command{
	Use:     "logout",
	Short:   "End the current session",
	GroupID: "account",
	RunE: func(cmd *cobra.Command, args []string) error {
		if apiClient.Token() == "" {
			fmt.Println("not signed in")
			return nil
		}
		if err := apiClient.SignOut(context.Background()); err != nil {
			return fmt.Errorf("signing out: %w", err)
		}
		if err := rememberSession(httpURL, "", ""); err != nil {
			return fmt.Errorf("clearing session: %w", err)
		}
		fmt.Println("signed out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:     "whoami",
	Short:   "Show the current session and roles",
	GroupID: "account",
	RunE: func(cmd *cobra.Command, args []string) error {
		me, err := apiClient.Me(context.Background())
		if err != nil {
			return fmt.Errorf("fetching session: %w", err)
		}
		if jsonOutput {
			return printJSON(me)
		}
		printMe(me)
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:     "refresh",
	Short:   "Extend the current session",
	GroupID: "account",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := apiClient.Refresh(context.Background())
		if err != nil {
			return fmt.Errorf("refreshing session: %w", err)
		}
		return finishSignIn(res)
	},
}

func init() {
	for _, c := range []*cobra.Command{signupCmd, loginCmd} {
		c.Flags().StringP("email", "e", "", "account email")
	}
	loginCmd.Flags().String("portal", "", "portal to sign in to (admin or customer)")
}
