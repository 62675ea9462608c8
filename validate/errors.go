package validate

import "errors"

// Sentinel errors returned by Validate. Callers should use errors.Is against
// these rather than matching on message text.
var (
	// ErrInvalidTarget is returned when the target is not an RFC1918 IPv4
	// address, an RFC1918 IPv4 CIDR, or a *.lab.internal hostname.
	ErrInvalidTarget = errors.New("validate: target is not a private address or lab.internal host")

	// ErrArgsTooLong is returned when extra_args exceeds the byte cap.
	ErrArgsTooLong = errors.New("validate: extra_args exceeds maximum length")

	// ErrForbiddenChar is returned when extra_args contains a shell
	// metacharacter from the forbidden set.
	ErrForbiddenChar = errors.New("validate: extra_args contains a forbidden character")

	// ErrMalformedToken is returned when extra_args cannot be tokenized with
	// POSIX word-splitting, or a token fails the allowed character pattern.
	ErrMalformedToken = errors.New("validate: extra_args contains a malformed token")

	// ErrFlagNotAllowed is returned when a token beginning with '-' does not
	// match any of the tool's allowed flag prefixes.
	ErrFlagNotAllowed = errors.New("validate: flag is not in the tool's allow-list")

	// ErrTimeoutOutOfRange is returned when timeout_sec cannot be clamped
	// into [1, 3600] because it is negative or not finite. Zero selects the
	// tool's default timeout.
	ErrTimeoutOutOfRange = errors.New("validate: timeout_sec is not a positive number")
)
