package mail

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var catalogYAML []byte

// Message содержит готовое к отправке письмо.
type Message struct {
	Subject string
	Body    string
	To      []string
}

type rawTemplate struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

type compiled struct {
	subject *template.Template
	body    *template.Template
}

// Catalog хранит шаблоны писем по имени.
type Catalog struct {
	templates map[string]compiled
}

// DefaultCatalog разбирает встроенный templates.yaml.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(catalogYAML)
}

// ParseCatalog разбирает YAML вида name: {subject, body}.
func ParseCatalog(src []byte) (*Catalog, error) {
	var raw map[string]rawTemplate
	if err := yaml.Unmarshal(src, &raw); err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}
	c := &Catalog{templates: make(map[string]compiled, len(raw))}
	for name, r := range raw {
		subj, err := template.New(name + ".subject").Option("missingkey=error").Parse(r.Subject)
		if err != nil {
			return nil, fmt.Errorf("template %s subject: %w", name, err)
		}
		body, err := template.New(name + ".body").Option("missingkey=error").Parse(r.Body)
		if err != nil {
			return nil, fmt.Errorf("template %s body: %w", name, err)
		}
		c.templates[name] = compiled{subject: subj, body: body}
	}
	return c, nil
}

// Render подставляет data в шаблон name. Тема письма сводится к одной строке.
func (c *Catalog) Render(name string, data any, to ...string) (Message, error) {
	t, ok := c.templates[name]
	if !ok {
		return Message{}, fmt.Errorf("unknown mail template %q", name)
	}
	var subj, body bytes.Buffer
	if err := t.subject.Execute(&subj, data); err != nil {
		return Message{}, fmt.Errorf("render %s subject: %w", name, err)
	}
	if err := t.body.Execute(&body, data); err != nil {
		return Message{}, fmt.Errorf("render %s body: %w", name, err)
	}
	return Message{
		Subject: strings.Join(strings.Fields(subj.String()), " "),
		Body:    body.String(),
		To:      to,
	}, nil
}
