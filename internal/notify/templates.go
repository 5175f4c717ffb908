package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"

	"github.com/alfredjeanlab/lensdesk/internal/model"
)

// detailRow is one optional line of the customer details table.
type detailRow struct {
	Label  string
	Value  string
	Strong bool
}

type emailData struct {
	Name  string
	Email string
	Phone string
	Rows  []detailRow
}

const detailsTable = `{{define "details"}}
<table style="width: 100%; border-collapse: collapse;">
  <tr><td style="padding: 8px 0; color: #64748b; font-weight: 600; width: 40%;">Name:</td><td style="padding: 8px 0; color: #1e293b;">{{.Name}}</td></tr>
  <tr><td style="padding: 8px 0; color: #64748b; font-weight: 600;">Email:</td><td style="padding: 8px 0; color: #1e293b;">{{template "email" .}}</td></tr>
  <tr><td style="padding: 8px 0; color: #64748b; font-weight: 600;">Phone:</td><td style="padding: 8px 0; color: #1e293b;">{{template "phone" .}}</td></tr>
  {{- range .Rows}}
  <tr><td style="padding: 8px 0; color: #64748b; font-weight: 600; vertical-align: top;">{{.Label}}:</td><td style="padding: 8px 0; color: #1e293b;">{{if .Strong}}<strong>{{.Value}}</strong>{{else}}{{.Value}}{{end}}</td></tr>
  {{- end}}
</table>
{{end}}`

var customerTmpl = template.Must(template.New("customer").Parse(detailsTable + `
{{define "email"}}{{.Email}}{{end}}
{{define "phone"}}{{.Phone}}{{end}}
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f8fafc;">
  <div style="background: linear-gradient(135deg, #0ea5e9 0%, #38bdf8 100%); padding: 30px; border-radius: 12px 12px 0 0;">
    <h1 style="color: white; margin: 0; font-size: 28px;">VisionCare Lens Shop</h1>
    <p style="color: white; margin: 10px 0 0 0; font-size: 16px;">Consultation Confirmation</p>
  </div>
  <div style="background-color: white; padding: 30px; border-radius: 0 0 12px 12px;">
    <h2 style="color: #1e293b; margin-top: 0;">Thank you for booking with us, {{.Name}}!</h2>
    <p style="color: #64748b; font-size: 16px; line-height: 1.6;">We have received your lens consultation request. Our team will review your details and contact you shortly.</p>
    <div style="background-color: #f1f5f9; padding: 20px; border-radius: 8px; margin: 25px 0;">
      <h3 style="color: #1e293b; margin-top: 0; font-size: 18px;">Your Consultation Details:</h3>
      {{template "details" .}}
    </div>
    <p style="color: #64748b; font-size: 14px; margin-top: 30px; padding-top: 20px; border-top: 1px solid #e2e8f0;"><strong>VisionCare Lens Shop</strong><br>Your Vision, Our Care</p>
  </div>
</div>`))

var adminTmpl = template.Must(template.New("admin").Parse(detailsTable + `
{{define "email"}}<a href="mailto:{{.Email}}" style="color: #0ea5e9;">{{.Email}}</a>{{end}}
{{define "phone"}}<a href="tel:{{.Phone}}" style="color: #0ea5e9;">{{.Phone}}</a>{{end}}
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f8fafc;">
  <div style="background: linear-gradient(135deg, #ef4444 0%, #f97316 100%); padding: 30px; border-radius: 12px 12px 0 0;">
    <h1 style="color: white; margin: 0; font-size: 28px;">New Consultation Request</h1>
    <p style="color: white; margin: 10px 0 0 0; font-size: 16px;">VisionCare Admin Notification</p>
  </div>
  <div style="background-color: white; padding: 30px; border-radius: 0 0 12px 12px;">
    <h2 style="color: #1e293b; margin-top: 0;">New Customer Consultation</h2>
    <p style="color: #64748b; font-size: 16px;">A new customer has submitted a lens consultation request. Please review the details below and follow up accordingly.</p>
    <div style="background-color: #fef2f2; padding: 20px; border-radius: 8px; margin: 25px 0; border-left: 4px solid #ef4444;">
      <h3 style="color: #1e293b; margin-top: 0; font-size: 18px;">Customer Details:</h3>
      {{template "details" .}}
    </div>
    <div style="background-color: #eff6ff; padding: 15px; border-radius: 8px; margin-top: 20px;">
      <p style="color: #1e40af; margin: 0; font-size: 14px;"><strong>Action Required:</strong> Please contact the customer within 24 hours to schedule their consultation.</p>
    </div>
    <p style="color: #94a3b8; font-size: 12px; margin-top: 30px; padding-top: 20px; border-top: 1px solid #e2e8f0;">This is an automated notification from VisionCare Lens Shop Admin System</p>
  </div>
</div>`))

func newEmailData(c *model.Customer, strongPowers bool) emailData {
	d := emailData{Name: c.Name, Email: c.Email, Phone: c.Phone}
	add := func(label, value string, strong bool) {
		if value != "" {
			d.Rows = append(d.Rows, detailRow{Label: label, Value: value, Strong: strong})
		}
	}
	if c.Age != nil && *c.Age > 0 {
		add("Age", strconv.Itoa(*c.Age), false)
	}
	add("Gender", c.Gender, false)
	add("Left Eye Power", c.LeftEyePower, strongPowers)
	add("Right Eye Power", c.RightEyePower, strongPowers)
	add("Lens Type", c.LensType, false)
	add("Notes", c.Notes, false)
	return d
}

func render(t *template.Template, d emailData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("render %s email: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// CustomerConfirmation renders the booking confirmation sent to the customer.
func CustomerConfirmation(c *model.Customer) (string, error) {
	return render(customerTmpl, newEmailData(c, false))
}

// AdminNotification renders the new-booking notice sent to the shop.
func AdminNotification(c *model.Customer) (string, error) {
	return render(adminTmpl, newEmailData(c, true))
}
