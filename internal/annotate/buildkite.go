package annotate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// AgentMetadataStore implements MetadataStore over `buildkite-agent
// meta-data` subprocess calls.
type AgentMetadataStore struct{}

// Exists runs `buildkite-agent meta-data exists`, which exits 0 when the key
// is present and 100 when it is not.
func (AgentMetadataStore) Exists(ctx context.Context, key string) (bool, error) {
	cmd := exec.CommandContext(ctx, "buildkite-agent", "meta-data", "exists", key)
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 100 {
		return false, nil
	}
	return false, fmt.Errorf("buildkite-agent meta-data exists: %w", err)
}

// Set runs `buildkite-agent meta-data set`.
func (AgentMetadataStore) Set(ctx context.Context, key, value string) error {
	cmd := exec.CommandContext(ctx, "buildkite-agent", "meta-data", "set", key, value)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("buildkite-agent meta-data set: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// AgentSink posts annotations through `buildkite-agent annotate` with the
// document piped on stdin.
type AgentSink struct{}

// Annotate posts content under contextID with the given style. Append mode
// accumulates sections under one running annotation instead of replacing it.
func (AgentSink) Annotate(ctx context.Context, style Style, content, contextID string, appendMode bool) error {
	args := []string{"annotate", "--style", string(style), "--context", contextID}
	if appendMode {
		args = append(args, "--append")
	}

	cmd := exec.CommandContext(ctx, "buildkite-agent", args...)
	cmd.Stdin = strings.NewReader(content)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("buildkite-agent annotate: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// RunningUnderAgent reports whether the buildkite agent environment is
// available. Outside it the caller degrades to writing the document to
// stdout.
func RunningUnderAgent() bool {
	if os.Getenv("BUILDKITE") == "" {
		return false
	}
	_, err := exec.LookPath("buildkite-agent")
	return err == nil
}

// WriterSink is the degraded sink used outside the CI system: it writes the
// document to the wrapped writer.
type WriterSink struct {
	W io.Writer
}

// Annotate writes the content followed by a newline.
func (s WriterSink) Annotate(_ context.Context, _ Style, content, _ string, _ bool) error {
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	_, err := s.W.Write([]byte(content))
	return err
}
