package render

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemplate(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write template: %v", err)
	}
	return path
}

func TestRender(t *testing.T) {
	templateDir := t.TempDir()
	scriptsDir := t.TempDir()
	out := t.TempDir()

	writeTemplate(t, templateDir, "apache.conf.j2", "[{{ env }}-{{ brand }}-/var/log/apache2/error.log]\nfile = /var/log/apache2/error.log\n")
	writeTemplate(t, templateDir, "app.conf.j2", "{{ env }}-{{ brand }}")
	writeTemplate(t, templateDir, "README.md", "not a template")
	main := writeTemplate(t, scriptsDir, "awslogs.conf.j2", "[general]\nstate_file = /var/awslogs/state/{{ brand }}.state\n")

	r := NewRenderer(Config{
		TargetDir:  filepath.Join(out, "config"),
		MainTarget: filepath.Join(out, "awslogs.conf"),
	})
	vars := map[string]any{"env": "prod", "brand": "acme"}

	written, err := r.Render(templateDir, main, vars)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	expected := []string{
		filepath.Join(out, "config", "apache.conf"),
		filepath.Join(out, "config", "app.conf"),
		filepath.Join(out, "awslogs.conf"),
	}
	if len(written) != len(expected) {
		t.Fatalf("Expected %d written files, got %d: %v", len(expected), len(written), written)
	}
	for i := range expected {
		if written[i] != expected[i] {
			t.Errorf("Expected written[%d] to be '%s', got '%s'", i, expected[i], written[i])
		}
	}

	got, err := os.ReadFile(filepath.Join(out, "config", "app.conf"))
	if err != nil {
		t.Fatalf("Failed to read rendered file: %v", err)
	}
	if string(got) != "prod-acme" {
		t.Errorf("Expected 'prod-acme', got '%s'", string(got))
	}

	got, err = os.ReadFile(filepath.Join(out, "awslogs.conf"))
	if err != nil {
		t.Fatalf("Failed to read rendered main config: %v", err)
	}
	if string(got) != "[general]\nstate_file = /var/awslogs/state/acme.state\n" {
		t.Errorf("Unexpected main config: %q", string(got))
	}
}

func TestRender_OverwritesExisting(t *testing.T) {
	templateDir := t.TempDir()
	out := t.TempDir()
	writeTemplate(t, templateDir, "app.conf.j2", "{{ env }}")
	writeTemplate(t, out, "app.conf", "stale content that is longer")

	r := NewRenderer(Config{TargetDir: out, MainTarget: filepath.Join(out, "awslogs.conf")})
	if _, err := r.Render(templateDir, "", map[string]any{"env": "dev"}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	got, _ := os.ReadFile(filepath.Join(out, "app.conf"))
	if string(got) != "dev" {
		t.Errorf("Expected 'dev', got '%s'", string(got))
	}
}

func TestRender_Errors(t *testing.T) {
	tests := []struct {
		name        string
		templateDir func(t *testing.T) string
	}{
		{
			name: "missing template directory",
			templateDir: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "missing")
			},
		},
		{
			name: "broken template",
			templateDir: func(t *testing.T) string {
				dir := t.TempDir()
				writeTemplate(t, dir, "bad.conf.j2", "{% if %}")
				return dir
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := t.TempDir()
			r := NewRenderer(Config{TargetDir: out, MainTarget: filepath.Join(out, "awslogs.conf")})
			if _, err := r.Render(tt.templateDir(t), "", nil); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestRender_NoEscaping(t *testing.T) {
	got, err := String("{{ pattern }}", map[string]any{"pattern": `[ip, user, status>=500 && status<600]`})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got != `[ip, user, status>=500 && status<600]` {
		t.Errorf("Expected pattern to be rendered verbatim, got '%s'", got)
	}
}

func TestNewRenderer_Defaults(t *testing.T) {
	r := NewRenderer(Config{})
	if r.config.TargetDir != DefaultTargetDir {
		t.Errorf("Expected target dir '%s', got '%s'", DefaultTargetDir, r.config.TargetDir)
	}
	if r.config.MainTarget != DefaultMainTarget {
		t.Errorf("Expected main target '%s', got '%s'", DefaultMainTarget, r.config.MainTarget)
	}
}

func TestString(t *testing.T) {
	vars := map[string]any{
		"account_id": "123456789012",
		"region":     "us-east-1",
		"tags":       map[string]string{"environment": "prod"},
	}

	got, err := String("arn:aws:kinesis:{{ region }}:{{ account_id }}:stream/{{ tags.environment }}-logs", vars)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	want := "arn:aws:kinesis:us-east-1:123456789012:stream/prod-logs"
	if got != want {
		t.Errorf("Expected '%s', got '%s'", want, got)
	}
}
