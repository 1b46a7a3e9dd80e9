//go:build e2e

// Package e2e_test drives a running server over HTTP. Start the server, then
// run: E2E_BASE_URL=http://localhost:8080 go test -tags e2e ./test/e2e/...
package e2e_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const timeout = 45 * time.Second

// getenv returns the value of the environment variable k or def if empty.
func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func baseURL() string { return getenv("E2E_BASE_URL", "http://localhost:8080") }

func waitForAppReady(t *testing.T, client *http.Client, maxWait time.Duration) {
	t.Helper()
	deadline := time.Now().Add(maxWait)
	for time.Now().Before(deadline) {
		resp, err := client.Get(baseURL() + "/")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(time.Second)
	}
	t.Fatalf("server at %s not ready after %s", baseURL(), maxWait)
}

// postRaw sends body with the given content type and decodes the JSON reply.
func postRaw(t *testing.T, client *http.Client, contentType string, body []byte) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, baseURL()+"/", bytes.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func postQuestion(t *testing.T, client *http.Client, q any) (*http.Response, map[string]any) {
	t.Helper()
	b, err := json.Marshal(map[string]any{"question": q})
	require.NoError(t, err)
	return postRaw(t, client, "application/json", b)
}
