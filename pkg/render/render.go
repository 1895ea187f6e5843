package render

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/flosch/pongo2/v6"
)

// Defaults match the awslogs agent layout
const (
	TemplateSuffix    = ".j2"
	AgentConfigSuffix = ".conf" + TemplateSuffix
	DefaultTargetDir  = "/var/awslogs/etc/config"
	DefaultMainTarget = "/var/awslogs/etc/awslogs.conf"
)

// Agent configs and ARNs are plain text, not HTML
func init() {
	pongo2.SetAutoescape(false)
}

// Config holds renderer configuration
type Config struct {
	// TargetDir receives one rendered file per *.conf.j2 template
	TargetDir string
	// MainTarget receives the rendered main agent template
	MainTarget string
}

// Renderer renders awslogs agent config templates
type Renderer struct {
	config Config
}

// NewRenderer creates a new Renderer, filling in default target paths
func NewRenderer(cfg Config) *Renderer {
	if cfg.TargetDir == "" {
		cfg.TargetDir = DefaultTargetDir
	}
	if cfg.MainTarget == "" {
		cfg.MainTarget = DefaultMainTarget
	}
	return &Renderer{config: cfg}
}

// Render renders every *.conf.j2 template in templateDir and the extra main
// template with vars. Existing target files are overwritten. It returns the
// paths written, in the order they were written.
func (r *Renderer) Render(templateDir, extraTemplate string, vars map[string]any) ([]string, error) {
	targets, err := r.Plan(templateDir, extraTemplate)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(r.config.TargetDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create target directory: %w", err)
	}

	written := make([]string, 0, len(targets))
	for _, t := range targets {
		slog.Info("rendering agent configuration", "template", t.Source, "target", t.Target)
		if err := renderFile(t.Source, t.Target, vars); err != nil {
			return written, err
		}
		written = append(written, t.Target)
	}
	return written, nil
}

// Target maps a template file to the file it renders to
type Target struct {
	Source string
	Target string
}

// Plan lists the templates Render would process without writing anything.
// Templates are sorted by name; the main template comes last.
func (r *Renderer) Plan(templateDir, extraTemplate string) ([]Target, error) {
	slog.Info("reading awslogs agent configuration templates", "dir", templateDir)
	entries, err := os.ReadDir(templateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read template directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), AgentConfigSuffix) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	targets := make([]Target, 0, len(names)+1)
	for _, name := range names {
		targets = append(targets, Target{
			Source: filepath.Join(templateDir, name),
			Target: filepath.Join(r.config.TargetDir, strings.TrimSuffix(name, TemplateSuffix)),
		})
	}
	if extraTemplate != "" {
		targets = append(targets, Target{Source: extraTemplate, Target: r.config.MainTarget})
	}
	return targets, nil
}

func renderFile(source, target string, vars map[string]any) error {
	tpl, err := pongo2.FromFile(source)
	if err != nil {
		return fmt.Errorf("failed to parse template %s: %w", source, err)
	}

	f, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	if err := tpl.ExecuteWriter(pongo2.Context(vars), f); err != nil {
		f.Close()
		return fmt.Errorf("failed to render %s: %w", source, err)
	}
	return f.Close()
}

// String renders a single template string, used for fields of the log
// group specs that reference instance values
func String(tpl string, vars map[string]any) (string, error) {
	t, err := pongo2.FromString(tpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %q: %w", tpl, err)
	}
	out, err := t.Execute(pongo2.Context(vars))
	if err != nil {
		return "", fmt.Errorf("failed to render template %q: %w", tpl, err)
	}
	return out, nil
}
