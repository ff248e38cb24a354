package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadTargetingDefaults(t *testing.T) {
	targeting, err := LoadTargeting("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(targeting.Codes) == 0 {
		t.Fatal("expected default codes")
	}
	if _, ok := targeting.Templates["intro"]; !ok {
		t.Fatal("expected default intro template")
	}
}

func TestLoadTargetingOverridesCodesAndTemplates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targeting.yaml")
	content := `codes: ["236220", "238210"]
templates:
  intro:
    subject: "Hi {{.ContractorName}}"
    html: "<p>hi</p>"
    text: "hi"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	targeting, err := LoadTargeting(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(targeting.Codes) != 2 || targeting.Codes[0] != "236220" {
		t.Fatalf("unexpected codes: %v", targeting.Codes)
	}
	if targeting.Templates["intro"].Subject != "Hi {{.ContractorName}}" {
		t.Fatalf("intro template not replaced: %+v", targeting.Templates["intro"])
	}
	if _, ok := targeting.Templates["follow_up"]; !ok {
		t.Fatal("expected default follow_up template to survive")
	}
}

func TestLoadTargetingRejectsTemplateWithoutSubject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targeting.yaml")
	if err := os.WriteFile(path, []byte("templates:\n  bad:\n    html: x\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadTargeting(path); err == nil {
		t.Fatal("expected error for template without subject")
	}
}

func TestLoadRequiresRegistryAPIKey(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/govcon")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("TRACKING_SECRET", "tracking")
	t.Setenv("EMAIL_ENABLED", "false")
	t.Setenv("REGISTRY_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected configuration error without REGISTRY_API_KEY")
	}

	t.Setenv("REGISTRY_API_KEY", "key")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GetOutreachCooldown().Hours() != 168 {
		t.Fatalf("expected 7 day cooldown, got %v", cfg.GetOutreachCooldown())
	}
}

func TestLoadTargetingRejectsBadCode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targeting.yaml")
	if err := os.WriteFile(path, []byte(`codes: ["2362AB"]`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadTargeting(path); err == nil {
		t.Fatal("expected error for non-numeric code")
	}
}
