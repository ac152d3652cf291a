// Package templates renders the account notification emails embedded in
// this package. Each template name has three files:
// <name>.subject.tmpl, <name>.text.tmpl and <name>.html.tmpl.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	htmpl "html/template"
	"reflect"
	"strings"
	texttpl "text/template"
	"time"
)

//go:embed *.tmpl
var FS embed.FS

// Template names carried in mailer.EmailJob.Template.
const (
	Welcome         = "welcome"
	PasswordChanged = "password_changed"
)

// AccountData is the data every account notification template receives.
type AccountData struct {
	AppName  string
	Fullname string
	Username string
	Email    string
	Time     time.Time
}

// ToMap flattens d into the JSON-safe map carried in EmailJob.Data.
func (d AccountData) ToMap() map[string]any {
	return map[string]any{
		"AppName":  d.AppName,
		"Fullname": d.Fullname,
		"Username": d.Username,
		"Email":    d.Email,
		"Time":     d.Time.UTC().Format(time.RFC3339),
	}
}

// orDefault backs {{ .Value | default "Fallback" }}.
func orDefault(fallback, value any) any {
	if value == nil {
		return fallback
	}
	if s, ok := value.(string); ok {
		if strings.TrimSpace(s) == "" {
			return fallback
		}
		return s
	}
	if reflect.ValueOf(value).IsZero() {
		return fallback
	}
	return value
}

var funcs = map[string]any{
	"upper":   strings.ToUpper,
	"default": orDefault,
}

// Subjects and text bodies share one text/template set; HTML bodies get
// contextual escaping from html/template.
var (
	textSet = texttpl.Must(texttpl.New("").Funcs(funcs).ParseFS(FS, "*.subject.tmpl", "*.text.tmpl"))
	htmlSet = htmpl.Must(htmpl.New("").Funcs(funcs).ParseFS(FS, "*.html.tmpl"))
)

// Render returns the trimmed subject and both bodies for template name.
func Render(name string, data any) (subject, text, html string, err error) {
	if subject, err = execText(name+".subject.tmpl", data); err != nil {
		return "", "", "", err
	}
	if text, err = execText(name+".text.tmpl", data); err != nil {
		return "", "", "", err
	}
	if html, err = execHTML(name+".html.tmpl", data); err != nil {
		return "", "", "", err
	}
	return strings.TrimSpace(subject), text, html, nil
}

func execText(file string, data any) (string, error) {
	if textSet.Lookup(file) == nil {
		return "", fmt.Errorf("unknown template %q", file)
	}
	var buf bytes.Buffer
	if err := textSet.ExecuteTemplate(&buf, file, data); err != nil {
		return "", fmt.Errorf("exec %q: %w", file, err)
	}
	return buf.String(), nil
}

func execHTML(file string, data any) (string, error) {
	if htmlSet.Lookup(file) == nil {
		return "", fmt.Errorf("unknown template %q", file)
	}
	var buf bytes.Buffer
	if err := htmlSet.ExecuteTemplate(&buf, file, data); err != nil {
		return "", fmt.Errorf("exec %q: %w", file, err)
	}
	return buf.String(), nil
}
