package mail

import (
	"fmt"
	"html/template"
	"strings"
)

const layout = `<!DOCTYPE html>
<html>
<head>
<style>
	body { font-family: 'Helvetica Neue', Helvetica, Arial, sans-serif; background-color: #F5F6FA; margin: 0; padding: 0; }
	.container { max-width: 600px; margin: 40px auto; background: #FFFFFF; border-radius: 8px; overflow: hidden; }
	.header { background-color: #1B1F3B; padding: 28px; text-align: center; }
	.header h1 { color: #FFFFFF; margin: 0; font-size: 22px; letter-spacing: 1px; }
	.content { padding: 36px 28px; color: #1B1F3B; line-height: 1.6; }
	.code { display: inline-block; padding: 12px 24px; background: #EEF1FB; border-radius: 6px; font-size: 28px; letter-spacing: 8px; font-weight: bold; }
	.footer { background-color: #F5F6FA; padding: 18px; text-align: center; font-size: 12px; color: #666666; }
</style>
</head>
<body>
<div class="container">
	<div class="header"><h1>INTERVIA</h1></div>
	<div class="content">{{.Body}}</div>
	<div class="footer">&copy; Intervia. If you did not request this email, you can ignore it.</div>
</div>
</body>
</html>`

var layoutTmpl = template.Must(template.New("layout").Parse(layout))

func render(body template.HTML) string {
	var sb strings.Builder
	// The layout template cannot fail on this input shape.
	_ = layoutTmpl.Execute(&sb, struct{ Body template.HTML }{Body: body})
	return sb.String()
}

// OTPVerificationBody renders the otp-verification template for the given code.
func OTPVerificationBody(code string, validFor string) string {
	body := fmt.Sprintf(
		`<h2>Verify your email</h2>
<p>Use the code below to finish creating your Intervia account.</p>
<p><span class="code">%s</span></p>
<p>The code expires in %s.</p>`,
		template.HTMLEscapeString(code), template.HTMLEscapeString(validFor))
	return render(template.HTML(body))
}

// PasswordResetBody renders the password-reset template for the given token.
func PasswordResetBody(token string, validFor string) string {
	body := fmt.Sprintf(
		`<h2>Reset your password</h2>
<p>We received a request to reset the password for your Intervia account.</p>
<p>Your reset code:</p>
<p><span class="code">%s</span></p>
<p>The code expires in %s. If you did not request a reset, no action is needed.</p>`,
		template.HTMLEscapeString(token), template.HTMLEscapeString(validFor))
	return render(template.HTML(body))
}
