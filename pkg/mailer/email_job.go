package mailer

import "errors"

// EmailJob is the JSON message on the email queue. It names a template and
// its data, or carries a ready subject with a text and/or HTML body.
type EmailJob struct {
	To       string         `json:"to"`
	Template string         `json:"template,omitempty"`
	Data     map[string]any `json:"data,omitempty"`

	Subject string `json:"subject,omitempty"`
	Text    string `json:"text,omitempty"`
	HTML    string `json:"html,omitempty"`
}

var (
	ErrNoRecipient = errors.New("email job has no recipient")
	ErrNoContent   = errors.New("email job has no content")
)

// TemplateJob addresses the named template to to.
func TemplateJob(to, template string, data map[string]any) EmailJob {
	return EmailJob{To: to, Template: template, Data: data}
}
