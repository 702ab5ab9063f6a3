package remote

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/qwtool/qw/internal/errors"
	"github.com/qwtool/qw/internal/stage"
)

// TemplateDir is where GitHub looks for issue forms, relative to the repository root.
const TemplateDir = ".github/ISSUE_TEMPLATE"

// IssueForm is a GitHub issue form definition.
type IssueForm struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Title       string      `yaml:"title,omitempty"`
	Labels      []string    `yaml:"labels"`
	Body        []FormField `yaml:"body"`
}

// FormField is one input of an issue form.
type FormField struct {
	Type        string          `yaml:"type"`
	ID          string          `yaml:"id,omitempty"`
	Attributes  FormAttributes  `yaml:"attributes"`
	Validations *FormValidation `yaml:"validations,omitempty"`
}

// FormAttributes holds the visible parts of a form field.
type FormAttributes struct {
	Label       string `yaml:"label,omitempty"`
	Description string `yaml:"description,omitempty"`
	Value       string `yaml:"value,omitempty"`
}

// FormValidation marks a form field as mandatory.
type FormValidation struct {
	Required bool `yaml:"required"`
}

// Template is a rendered issue form file.
type Template struct {
	Category stage.Category
	// Path is relative to the repository root
	Path    string
	Content []byte
}

// FormFor builds the issue form for category c. Harvest reads issues created
// from it: every non-local field except the title becomes a "### <Label>" answer.
func FormFor(c stage.Category) (*IssueForm, error) {
	schema := stage.SchemaFor(c)
	if schema == nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown stage: %q", string(c)))
	}

	form := &IssueForm{
		Name:        schema.Title,
		Description: fmt.Sprintf("Record a %s for design traceability (managed by qw)", schema.Title),
		Title:       titlePrefix(c) + " ",
		Labels:      []string{LabelFor(c)},
		Body: []FormField{{
			Type: "markdown",
			Attributes: FormAttributes{
				Value: fmt.Sprintf("Fields below are read by `qw check`. Do not rename the headings of this %s.", schema.Title),
			},
		}},
	}
	for _, f := range schema.Fields {
		if f.Local || f.Name == stage.FieldTitle {
			continue
		}
		field := FormField{
			Type: "input",
			ID:   f.Name,
			Attributes: FormAttributes{
				Label: f.Label,
			},
		}
		switch f.Kind {
		case stage.KindText:
			field.Type = "textarea"
		case stage.KindInt:
			field.Attributes.Description = fmt.Sprintf("The qw internal ID of the linked %s", f.Label)
		}
		if f.Required {
			field.Validations = &FormValidation{Required: true}
		}
		form.Body = append(form.Body, field)
	}
	return form, nil
}

// IssueTemplates renders the issue forms of every category.
func IssueTemplates() ([]Template, error) {
	var out []Template
	for _, c := range stage.Categories() {
		form, err := FormFor(c)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(form); err != nil {
			return nil, errors.NewInternal(err)
		}
		if err := enc.Close(); err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, Template{
			Category: c,
			Path:     TemplateDir + "/" + LabelFor(c) + ".yml",
			Content:  buf.Bytes(),
		})
	}
	return out, nil
}
