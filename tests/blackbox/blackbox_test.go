package blackbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"
)

// findFreePort picks an available TCP port on localhost.
func findFreePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func projectRootFromThisFile(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	// this file: <root>/tests/blackbox/blackbox_test.go
	bbDir := filepath.Dir(thisFile)
	return filepath.Dir(filepath.Dir(bbDir))
}

func buildBinary(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not on PATH")
	}
	root := projectRootFromThisFile(t)
	binPath := filepath.Join(t.TempDir(), "droidscope")
	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/droidscope")
	cmd.Dir = root
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("go build failed: %v\n%s", err, string(out))
	}
	return binPath
}

const sampleLog = `10-19 12:00:00.000 I/ActivityManager( 100): Start proc 4242:com.roblox.client
10-19 12:00:01.000 I/Unity   ( 4242): [BloxstrapRPC] {"command":"SetRichPresence","data":{"state":"Equipped \"Nova\"","largeImage":{"hoverText":"WINDY"}}}
10-19 12:00:03.000 I/Unity   ( 4242): [BloxstrapRPC] {"command":"SetRichPresence","data":{"state":"Equipped \"Nova\"","largeImage":{"hoverText":"DREAMSPACE"}}}
`

func TestBlackbox_ScanDryRun(t *testing.T) {
	bin := buildBinary(t)
	dir := t.TempDir()
	cmd := exec.Command(bin, "scan", "-", "--dry-run", "--no-delay", "--log-level", "off",
		"--settings", filepath.Join(dir, "settings.toml"))
	cmd.Stdin = strings.NewReader(sampleLog)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		t.Fatalf("scan: %v\n%s", err, stderr.String())
	}
	out := stdout.String()
	for _, want := range []string{"Aura Equipped - Nova", "Biome Ended - WINDY", "Biome Started - DREAMSPACE", `"content": "@everyone"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestBlackbox_ServeFollowsFileAndPostsWebhook(t *testing.T) {
	bin := buildBinary(t)
	dir := t.TempDir()

	var mu sync.Mutex
	var bodies []string
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(b))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	settingsPath := filepath.Join(dir, "settings.toml")
	if err := os.WriteFile(settingsPath, []byte(fmt.Sprintf("webhook_url = %q\n", hook.URL)), 0o600); err != nil {
		t.Fatal(err)
	}
	logPath := filepath.Join(dir, "logcat.txt")
	if err := os.WriteFile(logPath, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cfgPath := filepath.Join(dir, "droidscope.yaml")
	cfg := fmt.Sprintf("source: file\nsource_file: %s\nsettings_path: %s\nzone_start_delay: 50ms\nlog_level: off\nmax_body_bytes: 64\n", logPath, settingsPath)
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	port := findFreePort(t)
	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	cmd := exec.Command(bin, "serve", "--config", cfgPath, "--addr", fmt.Sprintf("127.0.0.1:%d", port), "--autostart")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() { _ = cmd.Process.Kill(); _ = cmd.Wait() })

	waitUntil(t, "readyz", func() bool {
		resp, err := http.Get(base + "/readyz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	})

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(sampleLog); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	waitUntil(t, "four webhook posts", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(bodies) == 4
	})

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodPost, base+"/session/stop", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stop status=%d", resp.StatusCode)
	}

	// max_body_bytes from the config file caps PUT /settings.
	big := fmt.Sprintf(`{"private_server_url":%q}`, strings.Repeat("x", 128))
	req, _ = http.NewRequestWithContext(context.Background(), http.MethodPut, base+"/settings", strings.NewReader(big))
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("put settings: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("oversized settings status=%d", resp.StatusCode)
	}
}

func TestBlackbox_ServeStopsIdleStdinSession(t *testing.T) {
	bin := buildBinary(t)
	dir := t.TempDir()
	port := findFreePort(t)
	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	cmd := exec.Command(bin, "serve", "--source", "stdin", "--autostart", "--log-level", "off",
		"--settings", filepath.Join(dir, "settings.toml"), "--addr", fmt.Sprintf("127.0.0.1:%d", port))
	stdin, err := cmd.StdinPipe()
	if err != nil {
		t.Fatal(err)
	}
	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() { _ = stdin.Close(); _ = cmd.Process.Kill(); _ = cmd.Wait() })

	waitUntil(t, "readyz", func() bool {
		resp, err := http.Get(base + "/readyz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	})

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(base+"/session/stop", "application/json", nil)
	if err != nil {
		t.Fatalf("stop with idle stdin: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stop status=%d", resp.StatusCode)
	}
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(50 * time.Millisecond)
	}
}
