package render

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/gofiber/template/html/v2"
	"github.com/valyala/bytebufferpool"
)

//go:embed templates/*.html
var embedFS embed.FS
var embedEngine *html.Engine
var dirEngine *html.Engine
var templateDir string
var globalVars map[string]interface{}

func Initialize(gVars map[string]interface{}, tmplDir string) error {
	globalVars = gVars
	dirEngine = nil
	if tmplDir != "" {
		info, err := os.Stat(tmplDir)
		if err != nil {
			return fmt.Errorf("template directory does not exist: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("template path is not a directory: %s", tmplDir)
		}
		templateDir = tmplDir
		dirEngine = html.New(tmplDir, ".html")
	}

	if err := initEmbeddedTemplates(); err != nil {
		return err
	}
	return nil
}

// initEmbeddedTemplates prepares embedded templates for fallback. Templates
// are named by their path relative to templates/ without the extension.
func initEmbeddedTemplates() error {
	sub, err := fs.Sub(embedFS, "templates")
	if err != nil {
		return err
	}
	engine := html.NewFileSystem(http.FS(sub), ".html")
	engine.AddFunc("lower", strings.ToLower)
	if err := engine.Load(); err != nil {
		return fmt.Errorf("failed to parse embedded templates: %w", err)
	}
	embedEngine = engine
	return nil
}

func RenderHTML(templateName string, vars map[string]interface{}) (string, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	mergedVars := make(map[string]interface{})
	for k, v := range globalVars {
		mergedVars[k] = v
	}
	for k, v := range vars {
		mergedVars[k] = v
	}

	templateName = strings.TrimSuffix(templateName, ".html")

	if dirEngine != nil {
		if err := dirEngine.Render(buf, templateName, mergedVars); err == nil {
			return buf.String(), nil
		} else {
			slog.Warn("Render template failed, falling back to embedded", "dir", templateDir, "template", templateName, "error", err)
		}
		buf.Reset()
	}

	if err := embedEngine.Render(buf, templateName, mergedVars); err != nil {
		return "", err
	}
	return buf.String(), nil
}
