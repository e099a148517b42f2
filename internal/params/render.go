package params

import (
	"bytes"
	"html/template"

	"github.com/microcosm-cc/bluemonday"
)

var inputAttrs = []string{
	"id", "name", "placeholder", "value", "maxlength",
	"type", "checked", "pattern", "required", "min", "max", "step", "readonly", "disabled",
}

var fieldPolicy = newFieldPolicy()

func newFieldPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("div", "label", "input")
	p.AllowAttrs(inputAttrs...).OnElements("input")
	p.AllowAttrs("for").OnElements("label")
	p.AllowNoAttrs().OnElements("div")
	return p
}

var fieldTemplate = template.Must(template.New("field").Parse(
	`{{define "label"}}<label for="{{.ID}}">{{.Placeholder}}</label>{{end}}` +
		`{{define "input"}}<input id="{{.ID}}" name="{{.ID}}"{{if .MaxLength}} maxlength="{{.MaxLength}}"{{end}} placeholder="{{.Placeholder}}" value="{{.Value}}" {{.Custom}}>{{end}}` +
		`<div>{{if eq .Placement 1}}{{template "label" .}}{{end}}{{template "input" .}}{{if eq .Placement 2}}{{template "label" .}}{{end}}</div>`,
))

type fieldView struct {
	ID          string
	Placeholder string
	Value       string
	MaxLength   int
	Placement   int
	Custom      template.HTMLAttr
}

// Render returns the sanitized form markup for one parameter.
func Render(p *Parameter) (template.HTML, error) {
	view := fieldView{
		ID:          p.ID,
		Placeholder: p.Placeholder,
		Value:       p.Value,
		MaxLength:   p.MaxLength,
		Placement:   int(p.LabelPlacement),
		// The raw attributes are passed through here and filtered by the
		// policy below.
		Custom: template.HTMLAttr(p.CustomHTML),
	}

	var buf bytes.Buffer
	if err := fieldTemplate.Execute(&buf, view); err != nil {
		return "", err
	}
	return template.HTML(fieldPolicy.SanitizeBytes(buf.Bytes())), nil
}

// RenderAll renders every registered parameter in order.
func (r *Registry) RenderAll() (template.HTML, error) {
	var buf bytes.Buffer
	for _, p := range r.All() {
		h, err := Render(p)
		if err != nil {
			return "", err
		}
		buf.WriteString(string(h))
	}
	return template.HTML(buf.String()), nil
}

var headPolicy = newHeadPolicy()

func newHeadPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowUnsafe(true)
	p.AllowElements("style", "meta", "link")
	p.AllowAttrs("name", "content", "charset", "http-equiv").OnElements("meta")
	p.AllowAttrs("rel", "href", "type", "media").OnElements("link")
	p.AllowAttrs("type", "media").OnElements("style")
	p.AllowNoAttrs().OnElements("style")
	p.AllowURLSchemes("http", "https")
	p.AllowRelativeURLs(true)
	return p
}

// SanitizeHead filters a custom head element down to style, meta and link tags.
func SanitizeHead(head string) template.HTML {
	if head == "" {
		return ""
	}
	return template.HTML(headPolicy.Sanitize(head))
}
