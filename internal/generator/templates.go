package generator

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"text/template"

	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/config"
)

// DefaultTemplateName identifies the embedded Dockerfile template in errors.
const DefaultTemplateName = "embedded:Dockerfile.tmpl"

//go:embed templates/Dockerfile.tmpl
var defaultDockerfile string

// TemplateData holds the values substituted into the Dockerfile template.
type TemplateData struct {
	Username  string
	BaseImage string
	SSHPort   int
}

// loadTemplate parses the template at path, or the embedded default when
// path is empty.
func loadTemplate(path string) (*template.Template, error) {
	if path == "" {
		return template.New("Dockerfile").Option("missingkey=error").Parse(defaultDockerfile)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	return template.New("Dockerfile").Option("missingkey=error").Parse(string(data))
}

func renderDockerfile(tmpl *template.Template, data *TemplateData) ([]byte, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.Bytes(), nil
}

// defaultSSHPort falls back to the standard port when none is configured.
func defaultSSHPort(p int) int {
	if p == 0 {
		return config.DefaultSSHPort
	}
	return p
}
