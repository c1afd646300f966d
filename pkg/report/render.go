package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/user/sysguard/pkg/engine"
	"gopkg.in/yaml.v3"
)

var ErrUnknownFormat = errors.New("unknown output format")

// Formats lists the values Render accepts.
var Formats = []string{"text", "json", "yaml"}

const textLayout = `Scan {{.ID}} on {{.Host}}
Started {{.StartedAt.Format "2006-01-02 15:04:05 MST"}}, took {{.Duration}}
{{range .Checks}}
== {{.Title}} ({{.ID}}) ==
{{- range .Rows}}
{{.Key}}:
{{indent .Text}}
{{- end}}
{{end}}
Summary: {{.Summary.Pass}} passed, {{.Summary.Fail}} failed, {{.Summary.Manual}} manual
`

var textTemplate = template.Must(template.New("text").Funcs(template.FuncMap{
	"indent": indent,
}).Parse(textLayout))

// Render writes r to w in the named format. The text format needs the
// catalogue for row order.
func Render(w io.Writer, format string, r *Report, cat *engine.Catalogue) error {
	switch format {
	case "text", "":
		return Text(w, r, cat)
	case "json":
		return JSON(w, r)
	case "yaml":
		return YAML(w, r)
	}
	return fmt.Errorf("%w: %q (want one of %s)", ErrUnknownFormat, format, strings.Join(Formats, ", "))
}

func Text(w io.Writer, r *Report, cat *engine.Catalogue) error {
	data := struct {
		*Report
		Checks []Section
	}{r, r.Sections(cat)}
	if err := textTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template %s: %w", textTemplate.Name(), err)
	}
	return nil
}

func JSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func YAML(w io.Writer, r *Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

func indent(text string) string {
	if text == "" {
		return "    -"
	}
	return "    " + strings.ReplaceAll(text, "\n", "\n    ")
}
