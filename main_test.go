package main

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/docopt/docopt-go"

	"github.com/nginx-proxxy/hello-server/cmd/config"
)

func TestResolveConfigPath(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		env      string
		wantPath string
		wantEnv  bool
	}{
		{"default", []string{}, "", "config.toml", false},
		{"flag", []string{"--config=custom.toml"}, "", "custom.toml", false},
		{"short flag", []string{"-c", "short.toml"}, "", "short.toml", false},
		{"env", []string{}, "/etc/hello/config.toml", "/etc/hello/config.toml", true},
		{"flag beats env", []string{"--config=flag.toml"}, "/etc/hello/config.toml", "flag.toml", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(configEnv, tt.env)

			opts, err := docopt.ParseArgs(usage, tt.args, version)
			if err != nil {
				t.Fatalf("Failed to parse args %v: %v", tt.args, err)
			}

			path, viaEnv := resolveConfigPath(opts)
			if path != tt.wantPath {
				t.Errorf("Expected path %s, got %s", tt.wantPath, path)
			}
			if viaEnv != tt.wantEnv {
				t.Errorf("Expected loadedViaEnv=%v, got %v", tt.wantEnv, viaEnv)
			}
		})
	}
}

func TestPrintStartup(t *testing.T) {
	var buf bytes.Buffer
	printStartup(&buf, config.Default())

	if got := buf.String(); got != "Starting Flask server on port 5000...\n" {
		t.Errorf("Unexpected startup message %q", got)
	}

	cfg := config.Default()
	cfg.Server.Port = 8123
	buf.Reset()
	printStartup(&buf, cfg)

	if got := buf.String(); got != "Starting Flask server on port 8123...\n" {
		t.Errorf("Expected configured port in startup message, got %q", got)
	}
}

// runMainEnv makes the test binary act as the server when re-executed
const runMainEnv = "HELLO_SERVER_TEST_RUN_MAIN"

func TestMain(m *testing.M) {
	if os.Getenv(runMainEnv) == "1" {
		os.Args = append([]string{"hello-server"}, strings.Fields(os.Getenv(runMainEnv+"_ARGS"))...)
		main()
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func runMain(t *testing.T, args string) (stdout string, exitCode int) {
	t.Helper()

	cmd := exec.Command(os.Args[0])
	cmd.Env = append(os.Environ(), runMainEnv+"=1", runMainEnv+"_ARGS="+args, configEnv+"=")
	var out bytes.Buffer
	cmd.Stdout = &out

	err := cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return out.String(), 0
	case errors.As(err, &exitErr):
		return out.String(), exitErr.ExitCode()
	default:
		t.Fatalf("Failed to run server process: %v", err)
		return "", -1
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBrokenConfigExitsWithoutStarting(t *testing.T) {
	path := writeConfig(t, "[server\nport = ")

	stdout, code := runMain(t, "--config="+path)

	if code != 1 {
		t.Errorf("Expected exit code 1, got %d", code)
	}
	if strings.Contains(stdout, "Starting Flask server") {
		t.Errorf("Server must not start on a broken config, stdout:\n%s", stdout)
	}
	if !strings.Contains(stdout, `"operation":"config loading"`) {
		t.Errorf("Expected config loading error to be logged, stdout:\n%s", stdout)
	}
}

func TestStartupMessageThenBindFailure(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer occupied.Close()

	port := occupied.Addr().(*net.TCPAddr).Port
	path := writeConfig(t, fmt.Sprintf("[server]\nhost = \"127.0.0.1\"\nport = %d\n", port))

	stdout, code := runMain(t, "--config="+path)

	if code != 1 {
		t.Errorf("Expected exit code 1 on bind failure, got %d", code)
	}

	want := fmt.Sprintf("Starting Flask server on port %d...\n", port)
	msgAt := strings.Index(stdout, want)
	if msgAt < 0 {
		t.Fatalf("Expected startup message %q in stdout:\n%s", want, stdout)
	}
	if errAt := strings.Index(stdout, `"operation":"HTTP server"`); errAt < msgAt {
		t.Errorf("Expected startup message before the bind error, stdout:\n%s", stdout)
	}
}
