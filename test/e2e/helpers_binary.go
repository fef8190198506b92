//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

// twinServer manages a running twin server process.
type twinServer struct {
	cmd     *exec.Cmd
	dataDir string
	dbPath  string
	address string
	logFile string
}

// startTwin launches the twin binary and waits for it to become healthy.
// The server is configured through environment variables only.
func startTwin(t *testing.T) *twinServer {
	t.Helper()
	requireTwin(t)

	dataDir := t.TempDir()
	port := freePort(t)
	s := &twinServer{
		dataDir: dataDir,
		dbPath:  filepath.Join(dataDir, "twin.db"),
		address: fmt.Sprintf("127.0.0.1:%d", port),
		logFile: filepath.Join(dataDir, "twin.log"),
	}

	s.cmd = exec.Command(twinBin)
	s.cmd.Env = append(s.env(),
		fmt.Sprintf("TWIN_PORT=%d", port),
		"TWIN_REFRESH_INTERVAL=0s",
	)

	lf, err := os.Create(s.logFile)
	if err != nil {
		t.Fatalf("create log file: %v", err)
	}
	s.cmd.Stdout = lf
	s.cmd.Stderr = lf

	if err := s.cmd.Start(); err != nil {
		lf.Close()
		t.Fatalf("start twin: %v", err)
	}

	t.Cleanup(func() {
		s.stop()
		lf.Close()
	})

	if err := s.waitHealthy(10 * time.Second); err != nil {
		t.Fatalf("twin not healthy: %v (log: %s)", err, s.log())
	}
	return s
}

// env is the environment shared by the server and CLI invocations.
func (s *twinServer) env() []string {
	return append(os.Environ(),
		"TWIN_DB_PATH="+s.dbPath,
		"TWIN_CONFIG_PATH="+filepath.Join(s.dataDir, "nonexistent.yaml"),
		"TWIN_LOG_FORMAT=text",
		"OPENAI_API_KEY=",
		"TWIN_REDIS_ADDR=",
		"TWIN_ARCHIVE_BUCKET=",
	)
}

func (s *twinServer) stop() {
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Signal(os.Interrupt)
		_ = s.cmd.Wait()
	}
}

func (s *twinServer) log() string {
	b, _ := os.ReadFile(s.logFile)
	return string(b)
}

func (s *twinServer) baseURL() string {
	return fmt.Sprintf("http://%s", s.address)
}

func (s *twinServer) waitHealthy(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	url := fmt.Sprintf("%s/api/v1/health", s.baseURL())

	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("twin not healthy after %s", timeout)
}

// cli runs a twin subcommand against the server's database and returns
// stdout. The command must succeed.
func (s *twinServer) cli(t *testing.T, args ...string) []byte {
	t.Helper()
	cmd := exec.Command(twinBin, args...)
	cmd.Env = s.env()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		t.Fatalf("twin %v: %v\nstderr: %s", args, err, stderr.String())
	}
	return stdout.Bytes()
}

// get fetches path from the server and decodes a JSON body into v when v
// is non-nil.
func (s *twinServer) get(t *testing.T, path string, v any) int {
	t.Helper()
	resp, err := http.Get(s.baseURL() + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("GET %s: decode: %v", path, err)
		}
	}
	return resp.StatusCode
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
