// Command gcgen scans a Go source file for struct types marked
// //gcheap:managed and emits a VisitPointers registration for each
// gcheap.Handle[*] field it finds, so callers don't have to hand-write the
// field-walking boilerplate TypeInfo.VisitPointers needs.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"strings"
	"text/template"

	"golang.org/x/tools/imports"
)

const managedMarker = "gcheap:managed"

type managedField struct {
	Name string
	Elem string // the T in gcheap.Handle[T]
}

type managedType struct {
	Name   string
	Fields []managedField
}

var outputTemplate = template.Must(template.New("gcgen").Parse(`// Code generated by gcgen. DO NOT EDIT.

package {{.Package}}

import (
	"unsafe"

	"github.com/gocheney/gcheap/gcheap"
)
{{range .Types}}
func register{{.Name}}() {
	gcheap.Register[{{.Name}}](gcheap.TypeInfo{
		Name: "{{.Name}}",
		Size: gcheap.SizeOf[{{.Name}}](),
		VisitPointers: func(payload unsafe.Pointer, h *gcheap.Heap) {
			{{if .Fields}}v := (*{{.Name}})(payload)
			{{range .Fields}}gcheap.VisitHandle(&v.{{.Name}}, h) // {{.Elem}}
			{{end}}{{else}}_, _ = payload, h
			{{end}}},
	})
}
{{end}}`))

func main() {
	out := flag.String("out", "", "output file (default: stdout)")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: gcgen [-out file] <source.go>")
		os.Exit(2)
	}

	if err := run(flag.Arg(0), *out); err != nil {
		fmt.Fprintln(os.Stderr, "gcgen:", err)
		os.Exit(1)
	}
}

func run(srcPath, outPath string) error {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, srcPath, nil, parser.ParseComments)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", srcPath, err)
	}

	types := findManagedTypes(file)
	if len(types) == 0 {
		return fmt.Errorf("no %q types found in %s", managedMarker, srcPath)
	}

	src, err := render(file.Name.Name, types)
	if err != nil {
		return err
	}

	formatted, err := imports.Process(outPath, src, nil)
	if err != nil {
		return fmt.Errorf("formatting generated source: %w", err)
	}

	if outPath == "" {
		_, err = os.Stdout.Write(formatted)
		return err
	}
	return os.WriteFile(outPath, formatted, 0o644)
}

func findManagedTypes(file *ast.File) []managedType {
	var result []managedType
	for _, decl := range file.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.TYPE {
			continue
		}
		if !hasMarker(gd.Doc) {
			continue
		}
		for _, spec := range gd.Specs {
			ts, ok := spec.(*ast.TypeSpec)
			if !ok {
				continue
			}
			st, ok := ts.Type.(*ast.StructType)
			if !ok {
				continue
			}
			mt := managedType{Name: ts.Name.Name}
			for _, field := range st.Fields.List {
				elem, ok := handleElemType(field.Type)
				if !ok {
					continue
				}
				for _, name := range fieldNames(field) {
					mt.Fields = append(mt.Fields, managedField{Name: name, Elem: elem})
				}
			}
			result = append(result, mt)
		}
	}
	return result
}

func hasMarker(doc *ast.CommentGroup) bool {
	if doc == nil {
		return false
	}
	for _, c := range doc.List {
		if strings.Contains(c.Text, managedMarker) {
			return true
		}
	}
	return false
}

func fieldNames(field *ast.Field) []string {
	if len(field.Names) == 0 {
		return nil
	}
	names := make([]string, len(field.Names))
	for i, n := range field.Names {
		names[i] = n.Name
	}
	return names
}

// handleElemType reports whether t is gcheap.Handle[X] and, if so, returns
// a source rendering of X.
func handleElemType(t ast.Expr) (string, bool) {
	idx, ok := t.(*ast.IndexExpr)
	if !ok {
		return "", false
	}
	sel, ok := idx.X.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != "Handle" {
		return "", false
	}
	pkg, ok := sel.X.(*ast.Ident)
	if !ok || pkg.Name != "gcheap" {
		return "", false
	}
	elemIdent, ok := idx.Index.(*ast.Ident)
	if !ok {
		return "", false
	}
	return elemIdent.Name, true
}

func render(pkg string, types []managedType) ([]byte, error) {
	var buf bytes.Buffer
	data := struct {
		Package string
		Types   []managedType
	}{pkg, types}
	if err := outputTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("rendering template: %w", err)
	}
	return buf.Bytes(), nil
}
