package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

const (
	TemplatePlain              = "plain"
	TemplateReviewerInvitation = "reviewer_invitation"
	TemplateReviewAssigned     = "review_assigned"
)

const layout = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Subject}}</title>
</head>
<body style="margin:0;padding:0;background-color:#f9fafb;font-family:'Segoe UI',Tahoma,Arial,sans-serif;">
<div style="max-width:640px;margin:0 auto;padding:24px 20px;">
  <div style="background-color:#ffffff;border:1px solid #e5e7eb;border-radius:12px;padding:24px;">
    {{template "content" .}}
  </div>
</div>
</body>
</html>`

var contents = map[string]string{
	TemplatePlain: `{{define "content"}}
    {{if .Data.name}}<p style="font-size:16px;color:#111827;">Dear {{.Data.name}},</p>{{end}}
    {{range .Lines}}<p style="font-size:16px;line-height:1.7;color:#111827;">{{.}}</p>{{end}}
{{end}}`,

	TemplateReviewerInvitation: `{{define "content"}}
    <p style="font-size:16px;color:#111827;">Dear {{.Data.name}},</p>
    <p style="font-size:16px;line-height:1.7;color:#111827;">You have been invited to join the program committee of <b>{{.Data.conference}}</b> as a reviewer.</p>
    <p style="font-size:16px;line-height:1.7;color:#111827;">Respond to the invitation before {{.Data.expires}}:</p>
    <p><a href="{{.Data.link}}" style="color:#2563eb;">{{.Data.link}}</a></p>
{{end}}`,

	TemplateReviewAssigned: `{{define "content"}}
    <p style="font-size:16px;color:#111827;">Dear reviewer,</p>
    <p style="font-size:16px;line-height:1.7;color:#111827;">The paper <b>{{.Data.title}}</b> has been assigned to you for review.</p>
    {{if .Data.due}}<p style="font-size:16px;line-height:1.7;color:#111827;">Please submit your review by {{.Data.due}}.</p>{{end}}
{{end}}`,
}

var templates = func() map[string]*template.Template {
	parsed := make(map[string]*template.Template, len(contents))
	for name, content := range contents {
		parsed[name] = template.Must(template.Must(template.New(name).Parse(layout)).Parse(content))
	}
	return parsed
}()

type templateData struct {
	Subject string
	Data    map[string]string
	Lines   []string
}

// Render produces the html body for one of the named templates. The plain
// template renders data["body"] split into paragraphs.
func Render(name, subject string, data map[string]string) (string, error) {
	tmpl, ok := templates[name]
	if !ok {
		return "", fmt.Errorf("unknown email template '%v'", name)
	}

	body := strings.ReplaceAll(data["body"], "\r\n", "\n")
	lines := []string{}
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, templateData{Subject: subject, Data: data, Lines: lines}); err != nil {
		return "", fmt.Errorf("error rendering email template '%v': %w", name, err)
	}
	return buf.String(), nil
}
