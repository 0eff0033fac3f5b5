package gwconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadParsesFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	body := "bind: 127.0.0.1\nhttp_port: 8080\nquic_port: 9443\ncert: /etc/reform/cert.pem\nkey: /etc/reform/key.pem\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Bind != "127.0.0.1" || cfg.HTTPPort != 8080 || cfg.QUICPort != 9443 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.CertPath != "/etc/reform/cert.pem" || cfg.KeyPath != "/etc/reform/key.pem" {
		t.Fatalf("unexpected cert/key: %+v", cfg)
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestOverlayPrefersExplicitFlag(t *testing.T) {
	if got := Overlay("cli-value", true, "file-value"); got != "cli-value" {
		t.Fatalf("Overlay with explicit flag = %q", got)
	}
	if got := Overlay("default", false, "file-value"); got != "file-value" {
		t.Fatalf("Overlay without explicit flag = %q", got)
	}
	if got := Overlay("default", false, ""); got != "default" {
		t.Fatalf("Overlay with empty file value = %q", got)
	}
}

func TestOverlayIntPrefersExplicitFlag(t *testing.T) {
	if got := OverlayInt(80, true, 8080); got != 80 {
		t.Fatalf("OverlayInt with explicit flag = %d", got)
	}
	if got := OverlayInt(80, false, 8080); got != 8080 {
		t.Fatalf("OverlayInt without explicit flag = %d", got)
	}
	if got := OverlayInt(80, false, 0); got != 80 {
		t.Fatalf("OverlayInt with zero file value = %d", got)
	}
}
