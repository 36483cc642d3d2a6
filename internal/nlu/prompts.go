package nlu

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed prompts/*.txt
var promptFS embed.FS

var prompts = template.Must(template.ParseFS(promptFS, "prompts/*.txt"))

func render(name string, data any) (string, error) {
	var b strings.Builder
	if err := prompts.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %s: %w", name, err)
	}
	return strings.TrimSpace(b.String()), nil
}
