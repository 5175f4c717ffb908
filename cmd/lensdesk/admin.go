package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/lensdesk/internal/client"
	"github.com/alfredjeanlab/lensdesk/internal/model"
	"github.com/spf13/cobra"
)

func listRequestFromFlags(cmd *cobra.Command) *client.ListRequest {
	search, _ := cmd.Flags().GetString("search")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")
	return &client.ListRequest{Search: search, Limit: limit, Offset: offset}
}

func addListFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("search", "q", "", "search text")
	cmd.Flags().Int("limit", 20, "maximum number of rows to return")
	cmd.Flags().Int("offset", 0, "offset for pagination")
}

var statsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show the back-office dashboard",
	GroupID: "admin",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := apiClient.Stats(context.Background())
		if err != nil {
			return deniedOr(err, "fetching stats")
		}
		if jsonOutput {
			return printJSON(st)
		}
		printStats(st)
		return nil
	},
}

// --- customers ---

var customersCmd = &cobra.Command{
	Use:     "customers",
	Short:   "Manage customer records",
	GroupID: "admin",
}

var customersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List customers, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := apiClient.ListCustomers(context.Background(), listRequestFromFlags(cmd))
		if err != nil {
			return deniedOr(err, "listing customers")
		}
		if jsonOutput {
			return printJSON(resp)
		}
		printCustomerTable(resp.Customers, resp.Total)
		return nil
	},
}

var customersAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a customer record",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := customerFromFlags(cmd.Flags())
		out, err := apiClient.CreateCustomer(context.Background(), &c)
		if err != nil {
			return deniedOr(err, "creating customer")
		}
		if jsonOutput {
			return printJSON(out)
		}
		printCustomer(out)
		return nil
	},
}

var customersShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one customer record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := apiClient.GetCustomer(context.Background(), args[0])
		if err != nil {
			return deniedOr(err, "fetching customer")
		}
		if jsonOutput {
			return printJSON(c)
		}
		printCustomer(c)
		return nil
	},
}

var customersDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete customer records",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, id := range args {
			if err := apiClient.DeleteCustomer(context.Background(), id); err != nil {
				return deniedOr(err, "deleting "+id)
			}
			fmt.Fprintf(stdout, "deleted %s\n", id)
		}
		return nil
	},
}

// --- consultation requests ---

var requestsCmd = &cobra.Command{
	Use:     "requests",
	Short:   "Manage consultation requests",
	GroupID: "admin",
}

var requestsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List consultation requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := listRequestFromFlags(cmd)
		req.Status, _ = cmd.Flags().GetStringSlice("status")
		resp, err := apiClient.ListConsultations(context.Background(), req)
		if err != nil {
			return deniedOr(err, "listing requests")
		}
		if jsonOutput {
			return printJSON(resp)
		}
		printConsultationTable(resp.Requests, resp.Total)
		return nil
	},
}

var requestsStatusCmd = &cobra.Command{
	Use:   "status <id> <pending|completed|cancelled>",
	Short: "Change the status of a consultation request",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		status := model.ConsultationStatus(strings.ToLower(args[1]))
		if !status.IsValid() {
			return fmt.Errorf("unknown status %q", args[1])
		}
		out, err := apiClient.UpdateConsultationStatus(context.Background(), args[0], status)
		if err != nil {
			return deniedOr(err, "updating request")
		}
		if jsonOutput {
			return printJSON(out)
		}
		fmt.Fprintf(stdout, "%s is now %s\n", out.ID, out.Status)
		return nil
	},
}

var requestsDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete consultation requests",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, id := range args {
			if err := apiClient.DeleteConsultation(context.Background(), id); err != nil {
				return deniedOr(err, "deleting "+id)
			}
			fmt.Fprintf(stdout, "deleted %s\n", id)
		}
		return nil
	},
}

// --- roles ---

var rolesCmd = &cobra.Command{
	Use:     "roles",
	Short:   "Manage role assignments",
	GroupID: "admin",
}

var rolesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List role assignments",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		roles, err := apiClient.ListRoles(context.Background(), userID)
		if err != nil {
			return deniedOr(err, "listing roles")
		}
		if jsonOutput {
			return printJSON(roles)
		}
		printRoleTable(roles)
		return nil
	},
}

var rolesGrantCmd = &cobra.Command{
	Use:   "grant <user-id|email> <role>",
	Short: "Grant a role to a user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := model.ParseRole(args[1])
		if err != nil {
			return err
		}
		req := &client.GrantRoleRequest{Role: string(role)}
		if strings.Contains(args[0], "@") {
			req.Email = args[0]
		} else {
			req.UserID = args[0]
		}
		a, err := apiClient.GrantRole(context.Background(), req)
		if err != nil {
			return deniedOr(err, "granting role")
		}
		if jsonOutput {
			return printJSON(a)
		}
		fmt.Fprintf(stdout, "granted %s to %s\n", a.Role, a.UserID)
		return nil
	},
}

var rolesRevokeCmd = &cobra.Command{
	Use:   "revoke <user-id> <role>",
	Short: "Revoke a role from a user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := model.ParseRole(args[1])
		if err != nil {
			return err
		}
		if err := apiClient.RevokeRole(context.Background(), args[0], role); err != nil {
			return deniedOr(err, "revoking role")
		}
		fmt.Fprintf(stdout, "revoked %s from %s\n", role, args[0])
		return nil
	},
}

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Short:   "List live sessions known to the server",
	GroupID: "admin",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := apiClient.ListSessions(context.Background())
		if err != nil {
			return deniedOr(err, "listing sessions")
		}
		if jsonOutput {
			return printJSON(entries)
		}
		printSessionTable(entries)
		return nil
	},
}

func init() {
	addListFlags(customersListCmd)
	customerFlags(customersAddCmd.Flags())
	customersCmd.AddCommand(customersListCmd, customersAddCmd, customersShowCmd, customersDeleteCmd)

	addListFlags(requestsListCmd)
	requestsListCmd.Flags().StringSliceP("status", "s", nil, "filter by status (repeatable, or \"all\")")
	requestsCmd.AddCommand(requestsListCmd, requestsStatusCmd, requestsDeleteCmd)

	rolesListCmd.Flags().String("user", "", "only this user id")
	rolesCmd.AddCommand(rolesListCmd, rolesGrantCmd, rolesRevokeCmd)
}
