package tls

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig_Validate(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "cert.pem")
	if err := os.WriteFile(existing, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "disabled", cfg: Config{}, wantErr: false},
		{name: "missing paths", cfg: Config{Enabled: true, CertFile: existing}, wantErr: true},
		{name: "missing file", cfg: Config{Enabled: true, CertFile: existing, KeyFile: existing, CAFile: filepath.Join(dir, "nope")}, wantErr: true},
		{name: "all present", cfg: Config{Enabled: true, CertFile: existing, KeyFile: existing, CAFile: existing}, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_DisabledReturnsNil(t *testing.T) {
	srv, err := Config{}.ServerConfig()
	if err != nil || srv != nil {
		t.Errorf("ServerConfig() = %v, %v; want nil, nil", srv, err)
	}
	cli, err := Config{}.ClientConfig()
	if err != nil || cli != nil {
		t.Errorf("ClientConfig() = %v, %v; want nil, nil", cli, err)
	}
}

func TestConfig_BadPEM(t *testing.T) {
	dir := t.TempDir()
	bogus := filepath.Join(dir, "bogus.pem")
	if err := os.WriteFile(bogus, []byte("not pem"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := Config{Enabled: true, CertFile: bogus, KeyFile: bogus, CAFile: bogus}
	if _, err := cfg.ServerConfig(); err == nil {
		t.Error("ServerConfig() expected an error for invalid PEM data")
	}
}
