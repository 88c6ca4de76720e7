package notify

import (
	"bytes"
	"html/template"
)

const layout = `<!DOCTYPE html>
<html>
<head>
<style>
  body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
  .container { max-width: 600px; margin: 0 auto; padding: 20px; }
  .button { display: inline-block; padding: 12px 24px; background-color: #007bff; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
  .footer { margin-top: 30px; font-size: 12px; color: #666; }
</style>
</head>
<body>
<div class="container">
{{template "body" .}}
<div class="footer"><p>This email was generated automatically. Please do not reply.</p></div>
</div>
</body>
</html>`

const welcomeBody = `{{define "body"}}<h2>Welcome!</h2>
<p>Hello{{if .Name}} {{.Name}}{{end}},</p>
<p>Your account has been created. You can now sign in with your email address and password.</p>
<p><a href="{{.URL}}">Sign in</a></p>{{end}}`

const resetBody = `{{define "body"}}<h2>Reset your password</h2>
<p>Hello{{if .Name}} {{.Name}}{{end}},</p>
<p>We received a request to reset your password. Use the button below to choose a new one:</p>
<a href="{{.URL}}" class="button">Reset password</a>
<p>Or copy this link into your browser:</p>
<p style="word-break: break-all;">{{.URL}}</p>
<p>This link is valid for {{.Validity}}.</p>
<p>If you did not request this, you can ignore this email.</p>{{end}}`

const magicLinkBody = `{{define "body"}}<h2>Your sign-in link</h2>
<p>Hello{{if .Name}} {{.Name}}{{end}},</p>
<a href="{{.URL}}" class="button">Sign in</a>
<p>Or copy this link into your browser:</p>
<p style="word-break: break-all;">{{.URL}}</p>
<p>This link is valid for {{.Validity}} and can be used once.</p>{{end}}`

var (
	welcomeTemplate   = template.Must(template.Must(template.New("welcome").Parse(layout)).Parse(welcomeBody))
	resetTemplate     = template.Must(template.Must(template.New("reset").Parse(layout)).Parse(resetBody))
	magicLinkTemplate = template.Must(template.Must(template.New("magic").Parse(layout)).Parse(magicLinkBody))
)

type messageData struct {
	Name     string
	URL      string
	Validity string
}

func render(t *template.Template, data messageData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
