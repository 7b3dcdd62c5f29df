package assets

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"portico/internal/registry"
	"portico/pkg/logging"
)

//go:embed templates/shell.html.tmpl
var shellTemplate string

// ShellData is the input for the HTML shell template.
type ShellData struct {
	Title   string
	Styles  []string
	Scripts []string
	Remotes []registry.ResolvedModule
}

// WriteShell renders the bootstrap HTML shell into dir/index.html:
// stylesheet links first, then scripts in manifest order as plain script
// elements (computed dynamic imports are unreliable across bundler
// setups), with the reconciled remote-module list embedded as JSON for
// the host application to read. Returns the written path.
func WriteShell(dir string, host *AssetSet, remotes []registry.ResolvedModule) (string, error) {
	tmpl, err := template.New("shell").Funcs(sprig.TxtFuncMap()).Parse(shellTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse shell template: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	outPath := filepath.Join(dir, "index.html")
	out, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("failed to create shell file: %w", err)
	}
	defer out.Close()

	data := ShellData{
		Title:   "portico",
		Styles:  host.Styles,
		Scripts: host.Scripts,
		Remotes: remotes,
	}
	if data.Remotes == nil {
		data.Remotes = []registry.ResolvedModule{}
	}

	if err := tmpl.Execute(out, data); err != nil {
		return "", fmt.Errorf("failed to render shell: %w", err)
	}

	logging.Info("Assets", "Wrote shell to %s", outPath)
	return outPath, nil
}
