package templates

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// PersonalWelcome greets a registered user by name.
const PersonalWelcome = "Hello {{.Name}}! How can I help you today?"

// Renderer renders small text templates for chat copy.
type Renderer struct{}

// Render compiles the provided template text with strict missing-key semantics.
func (Renderer) Render(name, tmpl string, data any) (string, error) {
	if tmpl == "" {
		return "", fmt.Errorf("templates: template text required")
	}
	t, err := template.New(name).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("templates: parse: %w", err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("templates: execute: %w", err)
	}
	return buf.String(), nil
}

// WelcomeData is available to welcome templates.
type WelcomeData struct {
	Name      string
	AgentName string
	TenantID  string
}

// Welcome returns the first chat message. A registered user gets the
// personal greeting; otherwise the configured text is rendered, and used
// verbatim when it is not a valid template.
func (r Renderer) Welcome(configured string, data WelcomeData) string {
	if strings.TrimSpace(data.Name) != "" {
		if out, err := r.Render("welcome_personal", PersonalWelcome, data); err == nil {
			return out
		}
	}
	if !strings.Contains(configured, "{{") {
		return configured
	}
	out, err := r.Render("welcome", configured, data)
	if err != nil {
		return configured
	}
	return out
}
