package shadow

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/shlex"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/config"
	"github.com/jingkaihe/skillforge/pkg/logger"
	"github.com/jingkaihe/skillforge/pkg/osutil"
)

// Exit codes reported by the sandbox for failures that have no process exit code.
const (
	ExitNoCodeBlocks = 2
	ExitTimeout      = 124
)

// DefaultSandboxTimeout bounds each compile check.
const DefaultSandboxTimeout = 20 * time.Second

// SandboxResult is the outcome of a sandbox run.
type SandboxResult struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
}

// Success reports whether every check passed.
func (r SandboxResult) Success() bool {
	return r.ExitCode == 0
}

// Runner compile-checks the code blocks of an answer.
type Runner interface {
	Run(ctx context.Context, task string, blocks []CodeBlock) SandboxResult
}

type checker struct {
	argv    []string
	ext     string
	failMsg string
}

// Sandbox compile-checks code blocks with local toolchains in a throwaway
// directory. Each check runs in its own process group under a timeout.
type Sandbox struct {
	timeout  time.Duration
	checkers map[string]checker
}

// NewSandbox builds a sandbox from cfg. The command strings are split like a
// shell would split them.
func NewSandbox(cfg config.SandboxConfig) (*Sandbox, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultSandboxTimeout
	}

	s := &Sandbox{timeout: timeout, checkers: map[string]checker{}}
	commands := []struct {
		lang, command, ext, failMsg string
	}{
		{LangPython, cfg.Python, ".py", "Python compile check failed"},
		{LangBash, cfg.Bash, ".sh", "Shell syntax check failed"},
		{LangJavaScript, cfg.Node, ".js", "JavaScript syntax check failed"},
	}
	for _, c := range commands {
		if c.command == "" {
			continue
		}
		argv, err := shlex.Split(c.command)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid sandbox command for %s", c.lang)
		}
		if len(argv) == 0 {
			continue
		}
		s.checkers[c.lang] = checker{argv: argv, ext: c.ext, failMsg: c.failMsg}
	}
	return s, nil
}

// Run writes each checkable block to a temp directory and compile-checks it,
// stopping at the first failure. Blocks in languages without a checker are
// skipped. An answer without code blocks fails with ExitNoCodeBlocks.
func (s *Sandbox) Run(ctx context.Context, task string, blocks []CodeBlock) SandboxResult {
	if len(blocks) == 0 {
		return SandboxResult{
			ExitCode: ExitNoCodeBlocks,
			Stderr:   fmt.Sprintf("no runnable code blocks found for task: %s", task),
		}
	}

	dir, err := os.MkdirTemp("", "skillforge_sandbox_")
	if err != nil {
		return SandboxResult{ExitCode: 1, Stderr: fmt.Sprintf("failed to create sandbox directory: %v", err)}
	}
	defer os.RemoveAll(dir)

	log := logger.G(ctx).WithField("sandbox_dir", dir)
	for i, b := range blocks {
		c, ok := s.checkers[b.Language]
		if !ok {
			continue
		}

		path := filepath.Join(dir, fmt.Sprintf("script_%d%s", i+1, c.ext))
		if err := os.WriteFile(path, []byte(b.Code), 0o600); err != nil {
			return SandboxResult{ExitCode: 1, Stderr: fmt.Sprintf("failed to write sandbox script: %v", err)}
		}

		res, err := s.check(ctx, dir, c, path)
		if err != nil {
			log.WithError(err).WithField("language", b.Language).Warn("sandbox check unavailable, skipping")
			continue
		}
		if !res.Success() {
			if res.Stderr == "" {
				res.Stderr = c.failMsg
			}
			log.WithField("language", b.Language).WithField("exit_code", res.ExitCode).Debug("sandbox check failed")
			return res
		}
	}
	return SandboxResult{}
}

// check runs one compile check. The error is non-nil only when the checker
// itself could not be started.
func (s *Sandbox) check(ctx context.Context, dir string, c checker, path string) (SandboxResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	args := append(append([]string{}, c.argv[1:]...), path)
	cmd := osutil.GroupCommand(ctx, dir, c.argv[0], args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := SandboxResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.ExitCode = ExitTimeout
		res.Stderr = "sandbox validation timed out"
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	return SandboxResult{}, err
}
