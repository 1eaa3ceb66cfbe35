package sched

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		t.Helper()
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	tests := []struct {
		name    string
		path    string
		want    Config
		wantErr bool
	}{
		{name: "empty path", path: "", want: DefaultConfig()},
		{name: "missing file", path: filepath.Join(dir, "nope.yml"), want: DefaultConfig()},
		{
			name: "overrides",
			path: write("ok.yml", "tick_ms: 20\ninbox_limit: 64\nlog_level: debug\ncsv_path: ev.csv\n"),
			want: Config{TickMS: 20, InboxLimit: 64, SimSeconds: 10, LogLevel: "debug", LogFormat: "text", CSVPath: "ev.csv"},
		},
		{
			name: "clamps",
			path: write("clamp.yml", "tick_ms: -1\ninbox_limit: -5\nsim_seconds: 0\n"),
			want: DefaultConfig(),
		},
		{name: "malformed", path: write("bad.yml", "tick_ms: fast\n"), want: DefaultConfig(), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load err = %v; wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("Load = %+v; want %+v", got, tt.want)
			}
		})
	}
}
