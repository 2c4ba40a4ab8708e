package mail

import (
	"html/template"
	"strings"
)

// VerificationSubject is the subject line for OTP verification mail.
const VerificationSubject = "Verify email from Space Biology Knowledge App"

var verificationTemplate = template.Must(template.New("verification").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Email Verification</title>
</head>
<body style="font-family: Arial, sans-serif; background: #0f172a; color: #e2e8f0; padding: 40px 20px;">
  <div style="max-width: 600px; margin: 0 auto; background: #1e293b; border-radius: 12px; padding: 30px;">
    <h2 style="color: #06b6d4;">Hi {{.Name}},</h2>
    <p>Use the code below to verify your email address:</p>
    <p style="font-size: 32px; letter-spacing: 8px; font-weight: bold; color: #06b6d4;">{{.Code}}</p>
    <p>The code is valid for {{.ValidMinutes}} minutes.</p>
    <p>If you did not request this code, you can ignore this email.</p>
  </div>
</body>
</html>`))

type verificationParams struct {
	Name         string
	Code         string
	ValidMinutes int
}

// VerificationEmail renders the HTML body carrying the OTP challenge.
func VerificationEmail(name, code string, validMinutes int) (string, error) {
	var b strings.Builder
	err := verificationTemplate.Execute(&b, verificationParams{
		Name:         name,
		Code:         code,
		ValidMinutes: validMinutes,
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
