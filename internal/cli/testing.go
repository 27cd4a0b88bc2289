package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// CLI runs pk in-process against a private working directory. HOME points
// below Dir, so the default data dir and the global config are private too.
type CLI struct {
	t   *testing.T
	Dir string
	Env map[string]string
}

// NewCLI returns a harness rooted in a fresh temp dir.
func NewCLI(t *testing.T) *CLI {
	t.Helper()

	dir := t.TempDir()

	return &CLI{t: t, Dir: dir, Env: map[string]string{"HOME": filepath.Join(dir, "home")}}
}

func (c *CLI) invoke(stdin io.Reader, args []string) (string, string, int) {
	var stdout, stderr bytes.Buffer

	argv := append([]string{"pk", "--cwd", c.Dir}, args...)
	code := Run(stdin, &stdout, &stderr, argv, c.Env, nil)

	return stdout.String(), stderr.String(), code
}

// Run runs "pk --cwd Dir args..." with no stdin.
func (c *CLI) Run(args ...string) (stdout, stderr string, exitCode int) {
	return c.invoke(nil, args)
}

// RunWithInput is [CLI.Run] with stdin reading from input.
func (c *CLI) RunWithInput(input string, args ...string) (stdout, stderr string, exitCode int) {
	return c.invoke(strings.NewReader(input), args)
}

// MustRun fails the test unless pk exits 0 and returns trimmed stdout.
func (c *CLI) MustRun(args ...string) string {
	c.t.Helper()

	stdout, stderr, code := c.Run(args...)
	if code != 0 {
		c.t.Fatalf("pk %s: exit %d\nstderr: %s", strings.Join(args, " "), code, stderr)
	}

	return strings.TrimSpace(stdout)
}

// MustFail fails the test unless pk exits non-zero with nothing on stdout.
// It returns trimmed stderr.
func (c *CLI) MustFail(args ...string) string {
	c.t.Helper()

	stdout, stderr, code := c.Run(args...)

	switch {
	case code == 0:
		c.t.Fatalf("pk %s: succeeded, want failure\nstdout: %s", strings.Join(args, " "), stdout)
	case stdout != "":
		c.t.Fatalf("pk %s: failed but wrote stdout: %s", strings.Join(args, " "), stdout)
	}

	return strings.TrimSpace(stderr)
}

// DataDir is where pk keeps its library when nothing overrides data_dir.
func (c *CLI) DataDir() string {
	return filepath.Join(c.Env["HOME"], ".local", "share", "promptkit")
}

func (c *CLI) path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}

	return filepath.Join(c.Dir, name)
}

// WriteFile creates name below Dir and returns its path.
func (c *CLI) WriteFile(name, content string) string {
	c.t.Helper()

	path := c.path(name)

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		c.t.Fatalf("write %s: %v", name, err)
	}

	return path
}

// ReadFile returns the content of name, absolute or relative to Dir.
func (c *CLI) ReadFile(name string) string {
	c.t.Helper()

	data, err := os.ReadFile(c.path(name))
	if err != nil {
		c.t.Fatalf("read %s: %v", name, err)
	}

	return string(data)
}

// AssertContains reports an error when out lacks want.
func AssertContains(t *testing.T, out, want string) {
	t.Helper()

	if !strings.Contains(out, want) {
		t.Errorf("missing %q in output:\n%s", want, out)
	}
}

// AssertNotContains reports an error when out has unwanted.
func AssertNotContains(t *testing.T, out, unwanted string) {
	t.Helper()

	if strings.Contains(out, unwanted) {
		t.Errorf("unexpected %q in output:\n%s", unwanted, out)
	}
}
