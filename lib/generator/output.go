package generator

import (
	"bytes"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// generateFile writes the *_hx.go file for the states declared in one
// source file.
func (g *Generator) generateFile(pkgPath, pkgName, sourceFile string, states []*StateInfo) error {
	baseName := strings.TrimSuffix(filepath.Base(sourceFile), ".go")
	outputFile := filepath.Join(pkgPath, baseName+"_hx.go")

	g.log.WithField("file", outputFile).Info("generating")

	if g.opts.DryRun {
		return nil
	}

	code, err := render(pkgName, states)
	if err != nil {
		return err
	}
	return os.WriteFile(outputFile, code, 0644)
}

// render produces the formatted source of a generated file.
func render(pkgName string, states []*StateInfo) ([]byte, error) {
	var buf bytes.Buffer
	if err := hxTemplate.Execute(&buf, struct {
		Package string
		States  []*StateInfo
	}{pkgName, states}); err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format source: %w\n%s", err, buf.Bytes())
	}
	return formatted, nil
}

var hxTemplate = template.Must(template.New("hx").Parse(`// Code generated by hxlive. DO NOT EDIT.

package {{.Package}}

import "github.com/pthm/hxlive/lib/state"
{{range $s := .States}}
// {{.TypeName}}Schema is the state schema of {{.TypeName}}. Pass it to
// hxlive.WithState.
var {{.TypeName}}Schema = state.NewSchema[{{.TypeName}}]()

// {{.TypeName}}Fields holds a handle for every tracked field of
// {{.TypeName}}, for use with hxlive.WithReloadOn.
var {{.TypeName}}Fields = struct {
{{- range .Fields}}
	{{.GoName}} state.Field // {{.Type}}
{{- end}}
}{
{{- range .Fields}}
	{{.GoName}}: {{$s.TypeName}}Schema.Field({{printf "%q" .Key}}),
{{- end}}
}
{{end}}`))
