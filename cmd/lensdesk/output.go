package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/lensdesk/internal/client"
	"github.com/alfredjeanlab/lensdesk/internal/model"
	"github.com/alfredjeanlab/lensdesk/internal/session"
	"github.com/alfredjeanlab/lensdesk/internal/ui"
)

const timeLayout = "2006-01-02 15:04:05"

var stdout io.Writer = os.Stdout

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintln(stdout, string(data))
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func printSession(res *client.SessionResult) {
	if res == nil || res.Session == nil {
		return
	}
	s := res.Session
	fmt.Fprintf(stdout, "Signed in as %s\n", ui.RenderAccent(s.Email))
	fmt.Fprintf(stdout, "Session:     %s\n", s.ID)
	fmt.Fprintf(stdout, "Expires At:  %s\n", formatTime(s.ExpiresAt))
}

func printMe(me *client.MeResponse) {
	s := me.Session
	roles := make([]string, len(me.Roles))
	for i, r := range me.Roles {
		roles[i] = string(r)
	}
	fmt.Fprintf(stdout, "Email:       %s\n", s.Email)
	fmt.Fprintf(stdout, "User ID:     %s\n", s.UserID)
	fmt.Fprintf(stdout, "Session:     %s\n", s.ID)
	fmt.Fprintf(stdout, "Roles:       %s\n", strings.Join(roles, ", "))
	fmt.Fprintf(stdout, "Issued At:   %s\n", formatTime(s.IssuedAt))
	fmt.Fprintf(stdout, "Expires At:  %s\n", formatTime(s.ExpiresAt))
}

func printStats(st *model.Stats) {
	fmt.Fprintf(stdout, "Total customers:        %d\n", st.TotalCustomers)
	fmt.Fprintf(stdout, "New in the last 7 days: %d\n", st.RecentCustomers)
	fmt.Fprintf(stdout, "Consultation requests:  %d\n", st.ConsultationRequests)
	fmt.Fprintf(stdout, "Pending requests:       %s\n", ui.RenderStatus(fmt.Sprint(st.PendingRequests)))
}

func printCustomerTable(customers []*model.Customer, total int) {
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tPHONE\tLENS\tCREATED")
	for _, c := range customers {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			c.ID,
			truncate(c.Name, 30),
			c.Email,
			c.Phone,
			c.LensType,
			formatTime(c.CreatedAt),
		)
	}
	w.Flush()
	fmt.Fprintf(stdout, "\n%d customers (%d total)\n", len(customers), total)
}

// printCustomer prints one record. Prescription fields appear only when set.
func printCustomer(c *model.Customer) {
	row := func(label, value string) {
		if value != "" {
			fmt.Fprintf(stdout, "%-20s%s\n", label+":", value)
		}
	}
	row("ID", c.ID)
	row("Name", c.Name)
	row("Email", c.Email)
	row("Phone", c.Phone)
	if c.Age != nil {
		row("Age", fmt.Sprint(*c.Age))
	}
	row("Gender", c.Gender)
	row("Lens Type", c.LensType)
	row("Left Eye Power", c.LeftEyePower)
	row("Right Eye Power", c.RightEyePower)
	if c.IncludePrescription {
		row("Sphere (L/R)", pair(c.LeftSphere, c.RightSphere))
		row("Cylinder (L/R)", pair(c.LeftCylinder, c.RightCylinder))
		row("Axis (L/R)", pair(c.LeftAxis, c.RightAxis))
		row("Add (L/R)", pair(c.LeftAdd, c.RightAdd))
		row("PD Near (L)", c.LeftPDNear)
		row("PD Distance (R)", c.RightPDDistance)
		row("Doctor", c.DoctorName)
		row("Prescription Notes", c.PrescriptionNotes)
	}
	row("Notes", c.Notes)
	row("Created At", formatTime(c.CreatedAt))
}

func pair(l, r string) string {
	if l == "" && r == "" {
		return ""
	}
	return orDash(l) + " / " + orDash(r)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func printConsultationTable(reqs []*model.ConsultationRequest, total int) {
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tNAME\tEMAIL\tPHONE\tMESSAGE\tCREATED")
	for _, r := range reqs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			ui.RenderStatus(string(r.Status)),
			truncate(r.Name, 30),
			r.Email,
			r.Phone,
			truncate(strings.ReplaceAll(r.Message, "\n", " "), 40),
			formatTime(r.CreatedAt),
		)
	}
	w.Flush()
	fmt.Fprintf(stdout, "\n%d requests (%d total)\n", len(reqs), total)
}

func printRoleTable(roles []*model.RoleAssignment) {
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USER ID\tEMAIL\tROLE\tGRANTED")
	for _, a := range roles {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.UserID, a.Email, a.Role, formatTime(a.CreatedAt))
	}
	w.Flush()
}

func printSessionTable(entries []session.Entry) {
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tEMAIL\tISSUED\tLAST SEEN\tREFRESHES\tREMAINING")
	for _, e := range entries {
		remain := (time.Duration(e.RemainSecs) * time.Second).String()
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			e.SessionID, e.Email, formatTime(e.IssuedAt), formatTime(e.LastSeen), e.Refreshes, remain)
	}
	w.Flush()
	fmt.Fprintf(stdout, "\n%d live sessions\n", len(entries))
}

func printDecision(d *client.AccessDecision) {
	fmt.Fprintf(stdout, "Decision:    %s\n", ui.RenderDecision(d.State))
	if d.Reason != "" {
		fmt.Fprintf(stdout, "Reason:      %s\n", d.Reason)
	}
	if d.UserID != "" {
		fmt.Fprintf(stdout, "User ID:     %s\n", d.UserID)
	}
	if d.Redirect != "" {
		fmt.Fprintf(stdout, "Redirect:    %s\n", d.Redirect)
	}
}
