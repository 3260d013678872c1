// Package beads wraps the bd work-queue CLI used by the beads-empty
// completion strategy.
package beads

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/tOgg1/looper/internal/models"
)

// DefaultBinary is the bd executable name.
const DefaultBinary = "bd"

// Client queries the beads work queue by shelling out to bd.
type Client struct {
	binary string
}

// NewClient creates a client for the given bd binary (empty means "bd").
func NewClient(binary string) *Client {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Client{binary: binary}
}

// Check verifies the bd binary is on PATH.
func (c *Client) Check() error {
	if _, err := exec.LookPath(c.binary); err != nil {
		return fmt.Errorf("%w: %s (install beads or set agent.beads_binary)",
			models.ErrDependencyMissing, c.binary)
	}
	return nil
}

// ReadyCount returns the number of ready items carrying the given label.
func (c *Client) ReadyCount(ctx context.Context, label string) (int, error) {
	cmd := exec.CommandContext(ctx, c.binary, "ready", "--label", label, "--json")

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("bd ready: %w", err)
	}

	return countReady(stdout.String())
}

// countReady parses bd's JSON array output; a bare count or line-per-item
// output from older bd versions is tolerated.
func countReady(text string) (int, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &items); err == nil {
		return len(items), nil
	}

	var count int
	if err := json.Unmarshal([]byte(trimmed), &count); err == nil {
		return count, nil
	}

	lines := 0
	for _, line := range strings.Split(trimmed, "\n") {
		if strings.TrimSpace(line) != "" {
			lines++
		}
	}
	return lines, nil
}
