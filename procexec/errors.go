package procexec

import "errors"

// ErrNotFound is returned when the tool's command_name does not resolve on
// PATH. No child is spawned.
var ErrNotFound = errors.New("procexec: command not found on PATH")
