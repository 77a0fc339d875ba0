package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"
)

const defaultAddr = "127.0.0.1:7639"

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func vaultDir() string {
	if dir := os.Getenv("VAULT_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		fatal("finding home directory: %v", err)
	}
	return filepath.Join(home, ".mvault")
}

func serverAddr() string {
	if addr := os.Getenv("VAULT_ADDR"); addr != "" {
		return addr
	}
	return defaultAddr
}

func promptPassword(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	pw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

func tokenPath() string {
	return filepath.Join(vaultDir(), "session.token")
}

func saveToken(token string) {
	if err := os.WriteFile(tokenPath(), []byte(token), 0600); err != nil {
		fatal("saving session token: %v", err)
	}
}

func loadToken() string {
	data, err := os.ReadFile(tokenPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func removeToken() {
	os.Remove(tokenPath())
}

var httpClient = &http.Client{Timeout: 30 * time.Second}

// apiRequest sends a JSON request to the local vault server, attaching the
// stored session token if present.
func apiRequest(method, path string, body any) (*http.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequest(method, "http://"+serverAddr()+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := loadToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return httpClient.Do(req)
}

// apiError is a decoded error body from the server.
type apiError struct {
	Message    string `json:"error"`
	Constraint string `json:"constraint"`
}

func (e *apiError) Error() string { return e.Message }

// apiResult decodes a JSON response into out, turning error bodies into
// readable messages.
func apiResult(resp *http.Response, out any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Message != "" {
			return &apiErr
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
