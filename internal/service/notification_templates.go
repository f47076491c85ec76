package service

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var emailTemplates = template.Must(template.New("emails").Parse(`
{{define "new_deal"}}<h2>New Deal Submitted</h2>
<p><strong>{{.BrokerName}}</strong> submitted a new deal:</p>
<ul>
  <li><strong>Business:</strong> {{.BusinessName}}</li>
  <li><strong>Type:</strong> {{.DealType}}</li>
  <li><strong>Amount:</strong> {{.Amount}}</li>
</ul>
<p><a href="{{.Link}}">View in Pipeline</a></p>{{end}}

{{define "status_change"}}<h2>Deal Status Updated</h2>
<p>Your deal for <strong>{{.BusinessName}}</strong> has been updated:</p>
<p><strong>{{.OldStatus}}</strong> → <strong>{{.NewStatus}}</strong></p>
{{if .Note}}<p><em>Note: {{.Note}}</em></p>{{end}}
<p><a href="{{.Link}}">View Your Deals</a></p>{{end}}

{{define "new_message"}}<h2>New Message</h2>
<p><strong>{{.SenderName}}</strong> sent a message on the deal for <strong>{{.BusinessName}}</strong>:</p>
<blockquote style="border-left: 3px solid #ccc; padding-left: 12px; color: #555;">
  {{.MessagePreview}}
</blockquote>
<p><a href="{{.Link}}">View Deal</a></p>{{end}}

{{define "docs_requested"}}<h2>Documents Requested</h2>
<p>The following documents have been requested for <strong>{{.BusinessName}}</strong>:</p>
<ul>
{{range .Documents}}  <li>{{.}}</li>
{{end}}</ul>
{{if .Note}}<p><em>Note: {{.Note}}</em></p>{{end}}
<p><a href="{{.Link}}">Upload Documents</a></p>{{end}}
`))

var emailSubjects = map[NotificationKind]string{
	NotifyNewDeal:       "New Deal Submitted: %s",
	NotifyStatusChange:  "Deal Status Updated: %s",
	NotifyNewMessage:    "New Message on %s",
	NotifyDocsRequested: "Documents Requested: %s",
}

// emailContent is the data every template renders from; each kind uses a subset.
type emailContent struct {
	BusinessName   string
	BrokerName     string
	DealType       string
	Amount         string
	OldStatus      string
	NewStatus      string
	Note           string
	SenderName     string
	MessagePreview string
	Documents      []string
	Link           string
}

func renderEmail(kind NotificationKind, content emailContent) (subject, html string, err error) {
	format, ok := emailSubjects[kind]
	if !ok {
		return "", "", fmt.Errorf("no template for notification kind %q", kind)
	}
	var body strings.Builder
	if err := emailTemplates.ExecuteTemplate(&body, string(kind), content); err != nil {
		return "", "", fmt.Errorf("render %s: %w", kind, err)
	}
	return fmt.Sprintf(format, content.BusinessName), strings.TrimSpace(body.String()), nil
}

var amountPrinter = message.NewPrinter(language.AmericanEnglish)

// formatAmount renders dollars with digit grouping, keeping cents only when present: $125,000 or $1,250.5.
func formatAmount(amount decimal.Decimal) string {
	amount = amount.Round(2)
	whole := amount.Truncate(0)
	out := "$" + amountPrinter.Sprintf("%d", whole.IntPart())
	if frac := amount.Sub(whole).Abs(); !frac.IsZero() {
		out += strings.TrimPrefix(frac.String(), "0")
	}
	return out
}
