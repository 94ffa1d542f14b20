package notify

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

//go:embed templates/*.html templates/*.txt
var templateFS embed.FS

var subjects = map[Template]string{
	TemplateActivation:       "Activate your Account",
	TemplateLoginOTP:         "Your Login OTP",
	TemplateAccountLockout:   "Account Security Alert - Temporary Lock",
	TemplatePasswordReset:    "Reset Your Password",
	TemplateAccountCreated:   "Welcome - Your Bank Account Has been Created",
	TemplateAccountActivated: "Your Bank Account Has been Activated",
}

// Message is a rendered email.
type Message struct {
	Subject  string
	HTMLBody string
	TextBody string
}

// Renderer renders embedded templates with site-wide defaults merged into the data.
type Renderer struct {
	html     map[Template]*htmltemplate.Template
	text     map[Template]*texttemplate.Template
	defaults Data
}

// NewRenderer parses every embedded template. siteName and supportEmail are
// available to all templates as site_name and support_email.
func NewRenderer(siteName, supportEmail string) (*Renderer, error) {
	r := &Renderer{
		html:     make(map[Template]*htmltemplate.Template, len(subjects)),
		text:     make(map[Template]*texttemplate.Template, len(subjects)),
		defaults: Data{"site_name": siteName, "support_email": supportEmail},
	}
	for name := range subjects {
		htmlTpl, errHTML := htmltemplate.ParseFS(templateFS, "templates/"+string(name)+".html")
		if errHTML != nil {
			return nil, fmt.Errorf("notify: parse %s html: %w", name, errHTML)
		}
		textTpl, errText := texttemplate.ParseFS(templateFS, "templates/"+string(name)+".txt")
		if errText != nil {
			return nil, fmt.Errorf("notify: parse %s text: %w", name, errText)
		}
		r.html[name] = htmlTpl.Option("missingkey=zero")
		r.text[name] = textTpl.Option("missingkey=zero")
	}
	return r, nil
}

// Render produces the subject and both bodies for template.
func (r *Renderer) Render(template Template, data Data) (Message, error) {
	htmlTpl, okHTML := r.html[template]
	textTpl, okText := r.text[template]
	if !okHTML || !okText {
		return Message{}, fmt.Errorf("%w: %s", ErrUnknownTemplate, template)
	}

	merged := make(Data, len(r.defaults)+len(data))
	for k, v := range r.defaults {
		merged[k] = v
	}
	for k, v := range data {
		merged[k] = v
	}

	var htmlBuf, textBuf bytes.Buffer
	if errExec := htmlTpl.Execute(&htmlBuf, merged); errExec != nil {
		return Message{}, fmt.Errorf("notify: render %s html: %w", template, errExec)
	}
	if errExec := textTpl.Execute(&textBuf, merged); errExec != nil {
		return Message{}, fmt.Errorf("notify: render %s text: %w", template, errExec)
	}
	return Message{Subject: subjects[template], HTMLBody: htmlBuf.String(), TextBody: textBuf.String()}, nil
}

// Known reports whether template has registered bodies.
func Known(template Template) bool {
	_, ok := subjects[template]
	return ok
}
