package notification

import (
	"fmt"
	"html"
	"strings"
	"sync"
)

// Template defines a reusable notification template. Subject and Body use
// {{key}} placeholders.
type Template struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// TemplateEngine manages notification templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the booking templates
// pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      string(EventBookingRequested),
			Subject: "New session request for {{date}}",
			Body:    "A client has requested a {{modality}} session on {{date}} from {{start}} to {{end}}. Please confirm or decline it.",
		},
		{
			ID:      string(EventBookingConfirmed),
			Subject: "Your session on {{date}} is confirmed",
			Body:    "Your {{modality}} session on {{date}} from {{start}} to {{end}} is confirmed. Join at {{meeting_link}} with password {{meeting_password}}.",
		},
		{
			ID:      string(EventBookingCancelled),
			Subject: "Session on {{date}} cancelled",
			Body:    "The session on {{date}} from {{start}} to {{end}} has been cancelled. Reason: {{reason}}",
		},
		{
			ID:      string(EventBookingRescheduled),
			Subject: "Your session has been rescheduled",
			Body:    "Your session has been moved to {{date}} from {{start}} to {{end}}. Reason: {{reason}}. Please confirm the new time.",
		},
		{
			ID:      string(EventBookingCompleted),
			Subject: "Session completed",
			Body:    "Your session on {{date}} from {{start}} to {{end}} has been marked as completed.",
		},
		{
			ID:      string(EventSessionReminder),
			Subject: "Reminder: session at {{start}} on {{date}}",
			Body:    "Your {{modality}} session starts at {{start}} on {{date}}. Join at {{meeting_link}}.",
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and performs {{key}} replacement using the
// supplied data map. Keys present in the template but absent from data are left
// as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

// HTMLParagraph wraps rendered plain text as an escaped HTML email body.
func HTMLParagraph(text string) string {
	return "<p>" + html.EscapeString(text) + "</p>"
}
