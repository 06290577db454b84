package notify

import (
	"bytes"
	"fmt"
	"html/template"
)

var (
	acceptedTpl = template.Must(template.New("accepted").Parse(
		`<p>Hi {{.Name}},</p><p>Congratulations, you have been accepted to join the team "<strong>{{.Team}}</strong>". Welcome aboard!</p>`))

	rejectedTpl = template.Must(template.New("rejected").Parse(
		`<p>Hi {{.Name}},</p><p>Thank you for applying to "<strong>{{.Team}}</strong>". After careful consideration, we have decided to move forward with other candidates.</p>`))
)

type personTeam struct {
	Name string
	Team string
}

// Welcome greets a newly registered user.
func Welcome(email string) Message {
	return Message{
		To:      email,
		Subject: "Welcome to teamup!",
		Text:    "Hello! Thanks for registering with us with your email: " + email,
	}
}

func VerifyOTP(email, code string) Message {
	return Message{
		To:      email,
		Subject: "Account verification OTP",
		Text:    fmt.Sprintf("Hello! Thanks for registering with us. Your OTP is %s", code),
	}
}

func ResetOTP(email, code string) Message {
	return Message{
		To:      email,
		Subject: "Password reset OTP",
		Text:    fmt.Sprintf("Your password reset OTP is %s", code),
	}
}

// NewApplication tells a team creator that someone applied.
func NewApplication(creatorEmail, team, applicantName, applicantID string) Message {
	return Message{
		To:      creatorEmail,
		Subject: fmt.Sprintf("New application for %q", team),
		Text: fmt.Sprintf("%s applied to your team.\n\nTeam: %s\nApplicant ID: %s",
			displayName(applicantName), team, applicantID),
	}
}

func Accepted(email, name, team string) Message {
	return Message{
		To:      email,
		Subject: fmt.Sprintf("Accepted to %q", team),
		Text:    fmt.Sprintf("Hi %s, you have been accepted to join the team %q. Welcome aboard!", displayName(name), team),
		HTML:    render(acceptedTpl, personTeam{Name: displayName(name), Team: team}),
	}
}

func Rejected(email, name, team string) Message {
	return Message{
		To:      email,
		Subject: fmt.Sprintf("Update on your application to %q", team),
		Text: fmt.Sprintf("Hi %s, thank you for applying to %q. After careful consideration, we have decided to move forward with other candidates.",
			displayName(name), team),
		HTML: render(rejectedTpl, personTeam{Name: displayName(name), Team: team}),
	}
}

func displayName(name string) string {
	if name == "" {
		return "there"
	}
	return name
}

// render returns "" when the template fails; callers fall back to Text.
func render(tpl *template.Template, data any) string {
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return ""
	}
	return buf.String()
}
