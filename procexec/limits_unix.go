//go:build unix

package procexec

import (
	"errors"

	"golang.org/x/sys/unix"
)

// applyResourceLimits sets best-effort POSIX rlimits on the already-started
// child identified by pid. Go's os/exec has no pre-exec hook, so there is an
// inherent race between Start returning and these limits landing; a child
// that does almost all its work in its first few microseconds could slip
// past the cap. Every limit is applied independently and failures are
// returned together rather than aborting on the first one, since a partial
// application (e.g. NOFILE succeeds, AS fails on a kernel without it) is
// still better than none.
func applyResourceLimits(pid int, limits ResourceLimits) error {
	var errs []error

	if limits.CPUSeconds > 0 {
		cpu := uint64(limits.CPUSeconds)
		errs = append(errs, unix.Prlimit(pid, unix.RLIMIT_CPU, &unix.Rlimit{
			Cur: cpu,
			Max: cpu + 5,
		}, nil))
	}

	if limits.MaxMemoryMB > 0 {
		bytes := uint64(limits.MaxMemoryMB) * 1024 * 1024
		errs = append(errs, unix.Prlimit(pid, unix.RLIMIT_AS, &unix.Rlimit{
			Cur: bytes,
			Max: bytes,
		}, nil))
	}

	if limits.MaxFileDescriptors > 0 {
		n := uint64(limits.MaxFileDescriptors)
		errs = append(errs, unix.Prlimit(pid, unix.RLIMIT_NOFILE, &unix.Rlimit{
			Cur: n,
			Max: n,
		}, nil))
	}

	// Core dumps are always disabled for spawned tools.
	errs = append(errs, unix.Prlimit(pid, unix.RLIMIT_CORE, &unix.Rlimit{Cur: 0, Max: 0}, nil))

	return errors.Join(errs...)
}
