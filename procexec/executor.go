package procexec

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"
)

// ResourceLimits bounds the child process on POSIX platforms. Zero fields
// are left unlimited.
type ResourceLimits struct {
	CPUSeconds         int
	MaxMemoryMB        int
	MaxFileDescriptors int
}

// Options configures one Execute call.
type Options struct {
	MaxStdoutBytes int64
	MaxStderrBytes int64
	Limits         ResourceLimits
}

// DefaultOptions returns the standard caps: 1 MiB stdout, 256 KiB stderr,
// 512 MiB address space, 256 file descriptors.
func DefaultOptions() Options {
	return Options{
		MaxStdoutBytes: 1048576,
		MaxStderrBytes: 262144,
		Limits: ResourceLimits{
			MaxMemoryMB:        512,
			MaxFileDescriptors: 256,
		},
	}
}

// Execute resolves binary on PATH, spawns it with argv as arguments and a
// minimal environment, and supervises it for up to timeout before killing
// its process group. It never re-touches the breaker, the gate, or metrics.
func Execute(ctx context.Context, binary string, argv []string, timeout time.Duration, opts Options) Result {
	resolved, err := exec.LookPath(binary)
	if err != nil {
		return Result{ReturnCode: 127, Err: ErrNotFound}
	}

	cmd := exec.Command(resolved, argv...)
	cmd.Env = []string{"PATH=" + envPath(), "LANG=C.UTF-8", "LC_ALL=C.UTF-8"}
	cmd.SysProcAttr = groupAttr()

	outCap := newCapWriter(opts.MaxStdoutBytes)
	errCap := newCapWriter(opts.MaxStderrBytes)
	cmd.Stdout = outCap
	cmd.Stderr = errCap

	if err := cmd.Start(); err != nil {
		return Result{ReturnCode: 1, Err: err}
	}

	if opts.Limits != (ResourceLimits{}) {
		_ = applyResourceLimits(cmd.Process.Pid, opts.Limits) // best-effort
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	waitDone := make(chan error, 1)
	go func() { waitDone <- cmd.Wait() }()

	select {
	case waitErr := <-waitDone:
		return buildResult(outCap, errCap, waitErr, false)

	case <-execCtx.Done():
		_ = killGroup(cmd)
		<-waitDone // reap; SIGKILL guarantees this returns
		timedOut := errors.Is(execCtx.Err(), context.DeadlineExceeded)
		res := buildResult(outCap, errCap, errors.New("process killed"), timedOut)
		if timedOut {
			res.ReturnCode = 124
		}
		return res
	}
}

func buildResult(outCap, errCap *capWriter, waitErr error, timedOut bool) Result {
	res := Result{
		Stdout:          decodeUTF8(outCap.Bytes()),
		Stderr:          decodeUTF8(errCap.Bytes()),
		TruncatedStdout: outCap.Truncated(),
		TruncatedStderr: errCap.Truncated(),
		TimedOut:        timedOut,
	}

	if timedOut {
		res.ReturnCode = 124
		return res
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
		res.ReturnCode = 0
	case errors.As(waitErr, &exitErr):
		res.ReturnCode = exitErr.ExitCode()
	default:
		res.ReturnCode = 1
		res.Err = waitErr
	}
	return res
}

// envPath returns the parent's PATH, falling back to a conservative default
// when the parent environment carries none.
func envPath() string {
	if p := os.Getenv("PATH"); p != "" {
		return p
	}
	return "/usr/local/bin:/usr/bin:/bin"
}

func decodeUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), "�")
}
