package mail

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// CaseNoticeData holds data for a case notification email.
type CaseNoticeData struct {
	RecipientName string
	CaseCode      string
	CaseTitle     string
	Status        string
	// Message is user-influenced text, sanitized before it reaches the HTML body.
	Message string
	CaseURL string
}

var (
	noticePolicy   = bluemonday.UGCPolicy()
	strictPolicy   = bluemonday.StrictPolicy()
	noticeTemplate = template.Must(template.New("case-notice").Parse(caseNoticeHTMLTemplate))
)

// BuildCaseNotice creates a case notice with both HTML and text bodies.
func BuildCaseNotice(data CaseNoticeData) (Email, error) {
	body, err := buildCaseNoticeHTML(data)
	if err != nil {
		return Email{}, err
	}
	return Email{
		Subject:  fmt.Sprintf("[%s] %s", data.CaseCode, data.CaseTitle),
		TextBody: buildCaseNoticeText(data),
		HTMLBody: body,
	}, nil
}

// SanitizeHTML strips everything but basic formatting from s.
func SanitizeHTML(s string) string {
	return noticePolicy.Sanitize(s)
}

func buildCaseNoticeText(data CaseNoticeData) string {
	var buf bytes.Buffer
	if data.RecipientName != "" {
		fmt.Fprintf(&buf, "Hello %s,\n\n", data.RecipientName)
	}
	fmt.Fprintf(&buf, "%s\n\n", strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(data.Message))))
	fmt.Fprintf(&buf, "Case: %s - %s\n", data.CaseCode, data.CaseTitle)
	if data.Status != "" {
		fmt.Fprintf(&buf, "Status: %s\n", data.Status)
	}
	if data.CaseURL != "" {
		fmt.Fprintf(&buf, "\n%s\n", data.CaseURL)
	}
	return buf.String()
}

func buildCaseNoticeHTML(data CaseNoticeData) (string, error) {
	view := struct {
		CaseNoticeData
		SafeMessage template.HTML
	}{
		CaseNoticeData: data,
		// sanitized by bluemonday above the template's own escaping
		SafeMessage: template.HTML(noticePolicy.Sanitize(data.Message)),
	}
	var buf bytes.Buffer
	if err := noticeTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render case notice: %w", err)
	}
	return buf.String(), nil
}

const caseNoticeHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.CaseCode}}</title>
</head>
<body style="margin: 0; padding: 20px; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; color: #333; background-color: #f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 600px; margin: 0 auto; background-color: #ffffff; border-radius: 8px;">
    <tr>
      <td style="padding: 24px 32px; border-bottom: 2px solid #0066cc;">
        <h1 style="margin: 0; font-size: 20px;">{{.CaseCode}} &middot; {{.CaseTitle}}</h1>
        {{if .Status}}<p style="margin: 8px 0 0; font-size: 13px; color: #6b7280;">{{.Status}}</p>{{end}}
      </td>
    </tr>
    <tr>
      <td style="padding: 24px 32px; line-height: 1.5;">
        {{if .RecipientName}}<p>Hello {{.RecipientName}},</p>{{end}}
        <div>{{.SafeMessage}}</div>
        {{if .CaseURL}}<p><a href="{{.CaseURL}}" style="display: inline-block; padding: 10px 20px; background: #0066cc; color: #ffffff; text-decoration: none; border-radius: 4px;">Open case</a></p>{{end}}
      </td>
    </tr>
  </table>
</body>
</html>`
