package main

import (
	"os"

	"github.com/alfredjeanlab/lensdesk/internal/client"
	"github.com/alfredjeanlab/lensdesk/internal/ui"
	"github.com/spf13/cobra"
)

var (
	httpURL    string
	serverAddr string
	jsonOutput bool
	noColor    bool

	apiClient *client.HTTPClient
)

func defaultHTTPURL() string {
	if s := os.Getenv("LENSDESK_HTTP_URL"); s != "" {
		return s
	}
	if p := activeProfile(); p.URL != "" {
		return p.URL
	}
	return "http://localhost:8080"
}

func defaultServer() string {
	if s := os.Getenv("LENSDESK_SERVER"); s != "" {
		return s
	}
	if p := activeProfile(); p.GRPCAddr != "" {
		return p.GRPCAddr
	}
	return "localhost:9090"
}

// sessionToken returns the token for outgoing calls: LENSDESK_TOKEN wins
// over the one saved by the last login.
func sessionToken() string {
	if s := os.Getenv("LENSDESK_TOKEN"); s != "" {
		return s
	}
	return activeProfile().Token
}

var rootCmd = &cobra.Command{
	Use:           "lensdesk <command>",
	Short:         "Optical shop CRM: bookings, customer records and back office",
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor {
			ui.ForceNoColor()
		}
		apiClient = client.NewHTTPClient(httpURL, sessionToken())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if apiClient != nil {
			apiClient.Close()
		}
	},
}

// noClient is used by commands that never talk to the HTTP API.
func noClient(cmd *cobra.Command, args []string) error {
	if noColor {
		ui.ForceNoColor()
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", defaultHTTPURL(), "HTTP server URL")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", defaultServer(), "gRPC server address")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "account", Title: "Account:"},
		&cobra.Group{ID: "shop", Title: "Shop:"},
		&cobra.Group{ID: "admin", Title: "Back office:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Account
	rootCmd.AddCommand(signupCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(refreshCmd)

	// Shop
	rootCmd.AddCommand(bookCmd)
	rootCmd.AddCommand(recordsCmd)

	// Back office
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(customersCmd)
	rootCmd.AddCommand(requestsCmd)
	rootCmd.AddCommand(rolesCmd)
	rootCmd.AddCommand(sessionsCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(accessCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(bootstrapAdminCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(profileCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
