package notify

import (
	"bytes"
	"errors"
	"text/template"
)

const DefaultTemplate = `[Consumption Anomaly]
Account: {{.AccountName}} ({{.AccountID}})
Date: {{.Date}}
Type: {{.Type}}
Observed: {{.Observed}}
Expected: {{.Expected}}
Deviation: {{.Deviation}}%
Risk Score: {{.RiskScore}}
Suggestion: {{.Suggestion}}`

// TemplateData provides fields for rendering notification content.
type TemplateData struct {
	AccountID   string
	AccountName string
	Date        string
	Type        string
	Observed    string
	Expected    string
	Deviation   string
	RiskScore   string
	Suggestion  string
}

// Template renders notification content.
type Template struct {
	tpl *template.Template
}

// NewTemplate parses a notification template, falling back to DefaultTemplate.
func NewTemplate(tpl string) (*Template, error) {
	if tpl == "" {
		tpl = DefaultTemplate
	}
	parsed, err := template.New("anomaly-notification").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to data.
func (t *Template) Render(data TemplateData) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("anomaly template: nil")
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
