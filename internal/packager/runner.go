package packager

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/mattn/go-shellwords"
)

// DefaultShell runs packaging scripts when no shell is configured.
const DefaultShell = "bash -e"

// ScriptRequest describes one packaging script invocation.
type ScriptRequest struct {
	Dir    string
	Script string
	Env    []string
}

// ScriptResult carries the outcome of a script that ran to completion.
type ScriptResult struct {
	ExitStatus int
	Output     []byte
}

// ScriptRunner runs a packaging script in a directory with extra environment.
// A non-zero exit status is reported in the result, not as an error.
type ScriptRunner interface {
	Run(ctx context.Context, req ScriptRequest) (ScriptResult, error)
}

// ShellRunner executes scripts as `<shell> <script>`.
type ShellRunner struct {
	argv []string
}

// NewShellRunner parses shell (e.g. "bash -e") into an argument vector.
func NewShellRunner(shell string) (*ShellRunner, error) {
	if shell == "" {
		shell = DefaultShell
	}
	argv, err := shellwords.Parse(shell)
	if err != nil {
		return nil, fmt.Errorf("could not parse '%s' into exec-able command: %w", shell, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty packaging shell")
	}
	return &ShellRunner{argv: argv}, nil
}

// Run implements ScriptRunner.
func (r *ShellRunner) Run(ctx context.Context, req ScriptRequest) (ScriptResult, error) {
	args := append(append([]string{}, r.argv[1:]...), req.Script)
	cmd := exec.CommandContext(ctx, r.argv[0], args...) // #nosec G204 -- shell and script come from operator configuration and the release
	cmd.Dir = req.Dir
	cmd.Env = append(os.Environ(), req.Env...)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if err == nil {
		return ScriptResult{Output: out.Bytes()}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ScriptResult{Output: out.Bytes()}, ctxErr
	}

	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		// ProcessState.Sys() is a WaitStatus on UNIX only
		if ws, ok := exitErr.ProcessState.Sys().(syscall.WaitStatus); ok {
			code := ws.ExitStatus()
			if ws.Signaled() {
				code = 128 + int(ws.Signal())
			}
			return ScriptResult{ExitStatus: code, Output: out.Bytes()}, nil
		}
		return ScriptResult{ExitStatus: exitErr.ExitCode(), Output: out.Bytes()}, nil
	}
	return ScriptResult{Output: out.Bytes()}, fmt.Errorf("unable to exec '%s': %w", r.argv[0], err)
}
