package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

const layout = `{{define "layout"}}<div style="font-family: Arial, sans-serif; max-width:600px; margin:auto; border:1px solid #ddd; border-radius:8px; overflow:hidden;">
  <div style="background:#007BFF; color:#fff; padding:15px; text-align:center; font-size:20px;">HealthTracker Clinic</div>
  <div style="padding:20px; background:#f9f9f9;">{{template "body" .}}</div>
  <div style="background:#f1f1f1; color:#888; text-align:center; padding:10px; font-size:12px;">&copy; {{.Year}} HealthTracker Clinic</div>
</div>{{end}}`

var bodies = map[string]string{
	"otp": `{{define "body"}}<h2>Your One-Time Password</h2>
<p>Use this code to reset your password. It is valid for <strong>{{.Minutes}} minutes</strong>.</p>
<p style="font-size:24px; letter-spacing:4px;"><strong>{{.Code}}</strong></p>
<p style="color:#777;">If you did not request this, ignore this email.</p>{{end}}`,

	"confirmation": `{{define "body"}}<h2>Appointment Confirmed</h2>
<p>Hello {{.Name}},</p>
<p>Your appointment with <strong>{{.Doctor}}</strong> is booked for <strong>{{.When}}</strong>.</p>
{{if .Reason}}<p>Reason: {{.Reason}}</p>{{end}}
<p>Please arrive 10 minutes early.</p>{{end}}`,

	"reminder": `{{define "body"}}<h2>Appointment Reminder</h2>
<p>Hello {{.Name}},</p>
<p>This is a reminder that you have an appointment with <strong>{{.Doctor}}</strong> tomorrow at <strong>{{.When}}</strong>.</p>{{end}}`,
}

var templates = func() map[string]*template.Template {
	out := make(map[string]*template.Template, len(bodies))
	for name, body := range bodies {
		t := template.Must(template.New(name).Parse(layout))
		out[name] = template.Must(t.Parse(body))
	}
	return out
}()

func render(name string, data map[string]any) (string, error) {
	t, ok := templates[name]
	if !ok {
		return "", fmt.Errorf("mailer: unknown template %q", name)
	}
	data["Year"] = time.Now().Year()
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("mailer: render %s: %w", name, err)
	}
	return buf.String(), nil
}

const dateLayout = "Monday, 02 Jan 2006 at 03:04 PM"

// OTPMessage builds the password reset e-mail.
func OTPMessage(to, code string, ttl time.Duration) (Message, error) {
	minutes := int(ttl / time.Minute)
	html, err := render("otp", map[string]any{"Code": code, "Minutes": minutes})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: "Your OTP Code for Verification",
		Text:    fmt.Sprintf("Your OTP is %s. It is valid for %d minutes.", code, minutes),
		HTML:    html,
	}, nil
}

// ConfirmationMessage builds the booking confirmation. when is rendered in
// its own location, so callers pass it already in the clinic zone.
func ConfirmationMessage(to, name, doctor, reason string, when time.Time) (Message, error) {
	html, err := render("confirmation", map[string]any{
		"Name": name, "Doctor": doctor, "Reason": reason, "When": when.Format(dateLayout),
	})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		ToName:  name,
		Subject: "Appointment Confirmation - HealthTracker Clinic",
		Text:    fmt.Sprintf("Hello %s, your appointment with %s is booked for %s.", name, doctor, when.Format(dateLayout)),
		HTML:    html,
	}, nil
}

// ReminderMessage builds the day-before reminder.
func ReminderMessage(to, name, doctor string, when time.Time) (Message, error) {
	html, err := render("reminder", map[string]any{
		"Name": name, "Doctor": doctor, "When": when.Format("03:04 PM"),
	})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		ToName:  name,
		Subject: "Appointment Reminder - Tomorrow",
		Text:    fmt.Sprintf("Hello %s, reminder: appointment with %s tomorrow at %s.", name, doctor, when.Format("03:04 PM")),
		HTML:    html,
	}, nil
}
