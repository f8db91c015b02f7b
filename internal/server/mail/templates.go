package mail

import (
	"bytes"
	"embed"
	"html"
	"html/template"

	"github.com/microcosm-cc/bluemonday"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// namePolicy reduces user-supplied display names to plain text.
var namePolicy = bluemonday.StrictPolicy()

// plainName strips markup from a display name. The policy output is entity
// encoded; it is decoded again since the templates do their own escaping.
func plainName(name string) string {
	return html.UnescapeString(namePolicy.Sanitize(name))
}

const (
	SubjectVerification = "Please verify your email"
	SubjectWelcome      = "Welcome to passvault!"
	SubjectResetRequest = "Password Reset Request"
	SubjectResetSuccess = "Password Reset Successful"
)

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// VerificationEmail carries the 6-digit signup code.
func VerificationEmail(to, code string) (Message, error) {
	body, err := render("verification.html", struct{ Code string }{code})
	return Message{To: to, Subject: SubjectVerification, HTML: body}, err
}

// WelcomeEmail greets a freshly verified user by name.
func WelcomeEmail(to, name string) (Message, error) {
	body, err := render("welcome.html", struct{ Name string }{plainName(name)})
	return Message{To: to, Subject: SubjectWelcome, HTML: body}, err
}

// ResetRequestEmail carries the password reset link.
func ResetRequestEmail(to, resetURL string) (Message, error) {
	body, err := render("reset_request.html", struct{ URL string }{resetURL})
	return Message{To: to, Subject: SubjectResetRequest, HTML: body}, err
}

// ResetSuccessEmail confirms a completed password reset.
func ResetSuccessEmail(to string) (Message, error) {
	body, err := render("reset_success.html", nil)
	return Message{To: to, Subject: SubjectResetSuccess, HTML: body}, err
}
