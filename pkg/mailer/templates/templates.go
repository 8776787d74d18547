package templates

import (
	"bytes"
	"embed"
	"fmt"
	htmpl "html/template"
	"io/fs"
	"os"
	"reflect"
	"strings"
	texttpl "text/template"
	"time"
)

//go:embed *.html
var FS embed.FS

// ---- Template names ----

const (
	ResetPassword = "reset_password.html"
	NewAccount    = "new_account.html"
)

// defaultFn supports pipe usage: {{ .Value | default "Fallback" }}
func defaultFn(fallback any, value any) any {
	switch x := value.(type) {
	case string:
		if strings.TrimSpace(x) == "" {
			return fallback
		}
		return x
	case nil:
		return fallback
	default:
		rv := reflect.ValueOf(value)
		if !rv.IsValid() {
			return fallback
		}
		if rv.IsZero() {
			return fallback
		}
		return value
	}
}

func baseFuncs() map[string]any {
	return map[string]any{
		"now":        func() time.Time { return time.Now().UTC() },
		"formatTime": func(t time.Time, layout string) string { return t.Format(layout) },
		"upper":      strings.ToUpper,
		"default":    defaultFn,
	}
}

var (
	htmlFuncMap = htmpl.FuncMap(baseFuncs())
	textFuncMap = texttpl.FuncMap(baseFuncs())
)

// Dir returns the template filesystem: dir when set, the embedded defaults otherwise.
func Dir(dir string) fs.FS {
	if dir == "" {
		return FS
	}
	return os.DirFS(dir)
}

// Load reads a template source from fsys.
func Load(fsys fs.FS, name string) (string, error) {
	b, err := fs.ReadFile(fsys, name)
	if err != nil {
		return "", fmt.Errorf("load template %q: %w", name, err)
	}
	return string(b), nil
}

// RenderText renders src with text/template. Used for subjects.
func RenderText(src string, data any) (string, error) {
	tpl, err := texttpl.New("text").Funcs(textFuncMap).Option("missingkey=zero").Parse(src)
	if err != nil {
		return "", fmt.Errorf("parse text: %w", err)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("exec text: %w", err)
	}
	return buf.String(), nil
}

// RenderHTML renders src with html/template, escaping interpolated values.
func RenderHTML(src string, data any) (string, error) {
	tpl, err := htmpl.New("html").Funcs(htmlFuncMap).Option("missingkey=zero").Parse(src)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("exec html: %w", err)
	}
	return buf.String(), nil
}
