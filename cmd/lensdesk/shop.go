package main

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/lensdesk/internal/client"
	"github.com/alfredjeanlab/lensdesk/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// customerFlags binds the text fields of a customer record to flags.
func customerFlags(fs *pflag.FlagSet) {
	fs.String("name", "", "full name (required)")
	fs.String("email", "", "email address (required)")
	fs.String("phone", "", "phone number (required)")
	fs.Int("age", 0, "age in years")
	fs.String("gender", "", "gender")
	fs.String("lens-type", "", "lens type, e.g. single vision or progressive")
	fs.String("left-eye-power", "", "left eye power")
	fs.String("right-eye-power", "", "right eye power")
	fs.Bool("prescription", false, "include the prescription fields below")
	fs.String("left-sphere", "", "left sphere")
	fs.String("right-sphere", "", "right sphere")
	fs.String("left-cylinder", "", "left cylinder")
	fs.String("right-cylinder", "", "right cylinder")
	fs.String("left-axis", "", "left axis")
	fs.String("right-axis", "", "right axis")
	fs.String("left-add", "", "left add")
	fs.String("right-add", "", "right add")
	fs.String("left-pd-near", "", "left pupillary distance, near")
	fs.String("right-pd-distance", "", "right pupillary distance, far")
	fs.String("doctor", "", "prescribing doctor")
	fs.String("prescription-notes", "", "prescription notes")
	fs.String("notes", "", "free-form notes")
}

func customerFromFlags(fs *pflag.FlagSet) model.Customer {
	str := func(name string) string {
		v, _ := fs.GetString(name)
		return v
	}
	c := model.Customer{
		Name:              str("name"),
		Email:             str("email"),
		Phone:             str("phone"),
		Gender:            str("gender"),
		LensType:          str("lens-type"),
		LeftEyePower:      str("left-eye-power"),
		RightEyePower:     str("right-eye-power"),
		LeftSphere:        str("left-sphere"),
		RightSphere:       str("right-sphere"),
		LeftCylinder:      str("left-cylinder"),
		RightCylinder:     str("right-cylinder"),
		LeftAxis:          str("left-axis"),
		RightAxis:         str("right-axis"),
		LeftAdd:           str("left-add"),
		RightAdd:          str("right-add"),
		LeftPDNear:        str("left-pd-near"),
		RightPDDistance:   str("right-pd-distance"),
		DoctorName:        str("doctor"),
		PrescriptionNotes: str("prescription-notes"),
		Notes:             str("notes"),
	}
	c.IncludePrescription, _ = fs.GetBool("prescription")
	if fs.Changed("age") {
		age, _ := fs.GetInt("age")
		c.Age = &age
	}
	return c
}

var bookCmd = &cobra.Command{
	Use:     "book",
	Short:   "Book an eye consultation",
	GroupID: "shop",
	Long: `Submit the public booking form. No sign-in is needed; when signed in
as a customer the record is linked to the account and shows up under
"lensdesk records".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		message, _ := cmd.Flags().GetString("message")
		resp, err := apiClient.Book(context.Background(), &client.BookingRequest{
			Customer: customerFromFlags(cmd.Flags()),
			Message:  message,
		})
		if err != nil {
			return fmt.Errorf("booking: %w", err)
		}
		if jsonOutput {
			return printJSON(resp)
		}
		fmt.Fprintf(stdout, "Booked consultation for %s\n", resp.Customer.Name)
		fmt.Fprintf(stdout, "Customer:    %s\n", resp.Customer.ID)
		if resp.Consultation != nil {
			fmt.Fprintf(stdout, "Request:     %s (%s)\n", resp.Consultation.ID, resp.Consultation.Status)
		}
		return nil
	},
}

var recordsCmd = &cobra.Command{
	Use:     "records",
	Short:   "List your own customer records",
	GroupID: "shop",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := apiClient.MyRecords(context.Background())
		if err != nil {
			return deniedOr(err, "fetching records")
		}
		if jsonOutput {
			return printJSON(resp)
		}
		if len(resp.Records) == 0 {
			fmt.Fprintf(stdout, "No records for %s yet. Book a consultation with \"lensdesk book\".\n", resp.Email)
			return nil
		}
		for i, c := range resp.Records {
			if i > 0 {
				fmt.Fprintln(stdout)
			}
			printCustomer(c)
		}
		return nil
	},
}

// deniedOr turns a login redirect into a sign-in hint and wraps anything
// else with what.
func deniedOr(err error, what string) error {
	if client.IsRedirect(err) {
		return fmt.Errorf("%w (run \"lensdesk login\" with an account that has access)", err)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func init() {
	customerFlags(bookCmd.Flags())
	bookCmd.Flags().StringP("message", "m", "", "message for the shop")
}
