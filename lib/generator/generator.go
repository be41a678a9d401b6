// Package generator writes typed field handles for hxlive state structs.
//
// A struct annotated with an //hxlive:state comment gets a schema variable
// and a struct of state.Field handles in <file>_hx.go, so dependency
// declarations are checked by the compiler:
//
//	//hxlive:state
//	type AppState struct {
//	    Count int `msgpack:"count"`
//	}
//
// generates AppStateSchema and AppStateFields.Count.
package generator

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// Directive marks a struct for generation.
const Directive = "//hxlive:state"

// Options configures the generator.
type Options struct {
	DryRun bool
	Logger logrus.FieldLogger
}

// Generator generates hxlive code.
type Generator struct {
	opts Options
	fset *token.FileSet
	log  logrus.FieldLogger
}

// New creates a new generator.
func New(opts Options) *Generator {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Generator{
		opts: opts,
		fset: token.NewFileSet(),
		log:  log,
	}
}

// Generate generates code for the given package patterns.
func (g *Generator) Generate(patterns ...string) error {
	packages, err := g.findPackages(patterns)
	if err != nil {
		return err
	}

	for _, pkg := range packages {
		if err := g.generatePackage(pkg); err != nil {
			return fmt.Errorf("package %s: %w", pkg, err)
		}
	}

	return nil
}

// Clean removes generated files for the given package patterns.
func (g *Generator) Clean(patterns ...string) error {
	packages, err := g.findPackages(patterns)
	if err != nil {
		return err
	}

	for _, pkg := range packages {
		if err := g.cleanPackage(pkg); err != nil {
			return fmt.Errorf("package %s: %w", pkg, err)
		}
	}

	return nil
}

// findPackages resolves package patterns to directory paths.
func (g *Generator) findPackages(patterns []string) ([]string, error) {
	var packages []string

	for _, pattern := range patterns {
		if !strings.HasSuffix(pattern, "/...") {
			packages = append(packages, pattern)
			continue
		}

		root := strings.TrimSuffix(pattern, "/...")
		if root == "" {
			root = "."
		}
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			base := filepath.Base(path)
			if path != root && (strings.HasPrefix(base, ".") || strings.HasPrefix(base, "_") ||
				base == "vendor" || base == "testdata") {
				return filepath.SkipDir
			}

			entries, err := os.ReadDir(path)
			if err != nil {
				return nil
			}
			for _, entry := range entries {
				if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".go") && !strings.HasSuffix(entry.Name(), "_test.go") {
					packages = append(packages, path)
					break
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return packages, nil
}

// generatePackage generates code for a single package.
func (g *Generator) generatePackage(pkgPath string) error {
	pkgs, err := parser.ParseDir(g.fset, pkgPath, func(info os.FileInfo) bool {
		name := info.Name()
		return !strings.HasSuffix(name, "_test.go") && !strings.HasSuffix(name, "_hx.go")
	}, parser.ParseComments)
	if err != nil {
		return err
	}

	for pkgName, pkg := range pkgs {
		structs := collectStructs(pkg)
		for _, file := range sortedFiles(pkg) {
			states, err := g.findStates(pkg.Files[file], structs)
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			if len(states) == 0 {
				continue
			}
			if err := g.generateFile(pkgPath, pkgName, file, states); err != nil {
				return err
			}
		}
	}

	return nil
}

// cleanPackage removes generated files from a package.
func (g *Generator) cleanPackage(pkgPath string) error {
	entries, err := os.ReadDir(pkgPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), "_hx.go") {
			continue
		}
		path := filepath.Join(pkgPath, entry.Name())
		g.log.WithField("file", path).Info("removing")
		if !g.opts.DryRun {
			if err := os.Remove(path); err != nil {
				return err
			}
		}
	}

	return nil
}

// StateInfo describes an annotated state struct.
type StateInfo struct {
	TypeName string
	Fields   []FieldInfo
}

// FieldInfo is one tracked field of a state struct.
type FieldInfo struct {
	GoName string // handle name in the generated struct
	Key    string // name the schema tracks, from the msgpack tag
	Type   string
}

func sortedFiles(pkg *ast.Package) []string {
	files := make([]string, 0, len(pkg.Files))
	for name := range pkg.Files {
		files = append(files, name)
	}
	sort.Strings(files)
	return files
}

// collectStructs indexes every struct type of the package, for inlining
// embedded fields.
func collectStructs(pkg *ast.Package) map[string]*ast.StructType {
	out := make(map[string]*ast.StructType)
	for _, file := range pkg.Files {
		for _, decl := range file.Decls {
			genDecl, ok := decl.(*ast.GenDecl)
			if !ok || genDecl.Tok != token.TYPE {
				continue
			}
			for _, spec := range genDecl.Specs {
				typeSpec := spec.(*ast.TypeSpec)
				if st, ok := typeSpec.Type.(*ast.StructType); ok {
					out[typeSpec.Name.Name] = st
				}
			}
		}
	}
	return out
}

// findStates returns the annotated structs declared in file.
func (g *Generator) findStates(file *ast.File, structs map[string]*ast.StructType) ([]*StateInfo, error) {
	var states []*StateInfo

	for _, decl := range file.Decls {
		genDecl, ok := decl.(*ast.GenDecl)
		if !ok || genDecl.Tok != token.TYPE {
			continue
		}

		for _, spec := range genDecl.Specs {
			typeSpec := spec.(*ast.TypeSpec)
			doc := typeSpec.Doc
			if doc == nil && len(genDecl.Specs) == 1 {
				doc = genDecl.Doc
			}
			if !hasDirective(doc) {
				continue
			}

			structType, ok := typeSpec.Type.(*ast.StructType)
			if !ok {
				return nil, fmt.Errorf("%s is annotated %s but is not a struct", typeSpec.Name.Name, Directive)
			}
			if typeSpec.TypeParams != nil {
				return nil, fmt.Errorf("%s: generic state types are not supported", typeSpec.Name.Name)
			}

			info := &StateInfo{TypeName: typeSpec.Name.Name}
			if err := g.collectFields(structType, structs, info, map[string]bool{info.TypeName: true}); err != nil {
				return nil, fmt.Errorf("%s: %w", info.TypeName, err)
			}
			states = append(states, info)
		}
	}

	return states, nil
}

func hasDirective(doc *ast.CommentGroup) bool {
	if doc == nil {
		return false
	}
	for _, c := range doc.List {
		if strings.TrimSpace(c.Text) == Directive {
			return true
		}
	}
	return false
}

// collectFields mirrors how the state schema walks a struct: exported fields
// only, msgpack:"-" skipped, untagged embedded structs inlined.
func (g *Generator) collectFields(st *ast.StructType, structs map[string]*ast.StructType, info *StateInfo, seen map[string]bool) error {
	for _, field := range st.Fields.List {
		key, skip := parseMsgpackTag(field.Tag)
		if skip {
			continue
		}

		if len(field.Names) == 0 {
			typeName := embeddedName(field.Type)
			_, pointer := field.Type.(*ast.StarExpr)
			if key == "" && pointer {
				key = typeName
			}
			if key == "" {
				inner, ok := structs[typeName]
				if !ok {
					g.log.WithField("type", typeName).Warn("embedded struct not found in package, its fields get no handles")
					continue
				}
				if seen[typeName] {
					return fmt.Errorf("recursive embedding of %s", typeName)
				}
				seen[typeName] = true
				if err := g.collectFields(inner, structs, info, seen); err != nil {
					return err
				}
				delete(seen, typeName)
				continue
			}
			if ast.IsExported(typeName) {
				info.Fields = append(info.Fields, FieldInfo{GoName: typeName, Key: key, Type: typeToString(field.Type)})
			}
			continue
		}

		for _, name := range field.Names {
			if !name.IsExported() {
				continue
			}
			k := key
			if k == "" {
				k = name.Name
			}
			info.Fields = append(info.Fields, FieldInfo{GoName: name.Name, Key: k, Type: typeToString(field.Type)})
		}
	}
	return nil
}

func embeddedName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return embeddedName(t.X)
	case *ast.SelectorExpr:
		return t.Sel.Name
	}
	return ""
}

// parseMsgpackTag returns the msgpack name of a field and whether the field
// is skipped.
func parseMsgpackTag(tag *ast.BasicLit) (name string, skip bool) {
	if tag == nil {
		return "", false
	}
	raw := strings.Trim(tag.Value, "`")
	value, ok := lookupTag(raw, "msgpack")
	if !ok {
		return "", false
	}
	if value == "-" {
		return "", true
	}
	name, _, _ = strings.Cut(value, ",")
	return name, false
}

// lookupTag finds key:"value" in a raw struct tag.
func lookupTag(raw, key string) (string, bool) {
	for _, part := range strings.Fields(raw) {
		if v, ok := strings.CutPrefix(part, key+`:"`); ok {
			return strings.TrimSuffix(v, `"`), true
		}
	}
	return "", false
}

// typeToString converts an AST type to a string representation.
func typeToString(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return "*" + typeToString(t.X)
	case *ast.SelectorExpr:
		return typeToString(t.X) + "." + t.Sel.Name
	case *ast.ArrayType:
		if t.Len == nil {
			return "[]" + typeToString(t.Elt)
		}
		return "[...]" + typeToString(t.Elt)
	case *ast.MapType:
		return "map[" + typeToString(t.Key) + "]" + typeToString(t.Value)
	case *ast.IndexExpr:
		return typeToString(t.X) + "[" + typeToString(t.Index) + "]"
	default:
		return fmt.Sprintf("%T", expr)
	}
}
