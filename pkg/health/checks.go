package health

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// WorkspaceCheck verifies that dir exists, is a directory, and is
// writable by creating and removing a probe file.
func WorkspaceCheck(dir string) CheckFunc {
	return func() (bool, string) {
		info, err := os.Stat(dir)
		if err != nil {
			return false, fmt.Sprintf("unavailable: %v", err)
		}
		if !info.IsDir() {
			return false, "not a directory"
		}

		probe := filepath.Join(dir, ".health-probe")
		if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
			return false, fmt.Sprintf("not writable: %v", err)
		}
		os.Remove(probe)
		return true, "ok"
	}
}

// DirectoryCheck verifies that dir exists and is readable.
func DirectoryCheck(dir string) CheckFunc {
	return func() (bool, string) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return false, fmt.Sprintf("unreadable: %v", err)
		}
		return true, fmt.Sprintf("%d entries", len(entries))
	}
}

// HTTPCheck verifies that url responds with 200 within timeout.
func HTTPCheck(url string, timeout time.Duration) CheckFunc {
	client := &http.Client{Timeout: timeout}
	return func() (bool, string) {
		resp, err := client.Get(url)
		if err != nil {
			return false, fmt.Sprintf("unreachable: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return false, fmt.Sprintf("status %d", resp.StatusCode)
		}
		return true, "ok"
	}
}
