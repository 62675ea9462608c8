package validate

import (
	"fmt"
	"math"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/google/shlex"
)

const (
	// MaxArgsLen is the maximum byte length of extra_args.
	MaxArgsLen = 2048

	// MinTimeout and MaxTimeoutSec bound an accepted timeout_sec value.
	MinTimeout    = 1 * time.Second
	MaxTimeoutSec = 3600 * time.Second
)

// forbiddenChars is the metacharacter set that must never appear in
// extra_args, regardless of tokenization: ; & | ` $ > < CR LF.
const forbiddenChars = ";&|`$><\r\n"

var (
	tokenPattern    = regexp.MustCompile(`^[A-Za-z0-9.:/=+\-,@%_]+$`)
	labInternalHost = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)
)

var privateBlocks = func() []*net.IPNet {
	var nets []*net.IPNet
	for _, cidr := range []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"} {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(err) // unreachable: literals are valid CIDRs
		}
		nets = append(nets, n)
	}
	return nets
}()

// Request is the caller-supplied, untrusted input to Validate.
type Request struct {
	Target        string
	ExtraArgs     string
	TimeoutSec    float64 // 0 means "use the tool default"
	CorrelationID string
}

// Constraints carries the subset of a tool definition the validator needs.
// AllowedFlags is a prefix list (string-prefix match, not equality) so
// "--flag=value" forms are supported; a nil/empty slice means no flag tokens
// are permitted at all.
type Constraints struct {
	AllowedFlags   []string
	DefaultTimeout time.Duration
}

// ValidatedRequest is the sanitized, ready-to-execute form of a Request.
type ValidatedRequest struct {
	Target        string
	Args          []string
	Timeout       time.Duration
	CorrelationID string
}

// Validate runs the full Validator contract: target, extra_args, flag
// allow-list, and timeout clamping, in that order. It has no side effects
// and never spawns a process.
func Validate(req Request, c Constraints) (ValidatedRequest, error) {
	target := strings.TrimSpace(req.Target)
	if err := validateTarget(target); err != nil {
		return ValidatedRequest{}, err
	}

	args, err := validateArgs(req.ExtraArgs, c.AllowedFlags)
	if err != nil {
		return ValidatedRequest{}, err
	}

	timeout, err := validateTimeout(req.TimeoutSec, c.DefaultTimeout)
	if err != nil {
		return ValidatedRequest{}, err
	}

	return ValidatedRequest{
		Target:        target,
		Args:          args,
		Timeout:       timeout,
		CorrelationID: req.CorrelationID,
	}, nil
}

func validateTarget(target string) error {
	if target == "" {
		return ErrInvalidTarget
	}

	if label, ok := strings.CutSuffix(target, ".lab.internal"); ok {
		if label == "" || !labInternalHost.MatchString(label) {
			return ErrInvalidTarget
		}
		return nil
	}

	if strings.Contains(target, "/") {
		ip, network, err := net.ParseCIDR(target)
		if err != nil || ip.To4() == nil {
			return ErrInvalidTarget
		}
		if !isPrivate(network.IP) {
			return ErrInvalidTarget
		}
		return nil
	}

	ip := net.ParseIP(target)
	if ip == nil || ip.To4() == nil {
		return ErrInvalidTarget
	}
	if !isPrivate(ip) {
		return ErrInvalidTarget
	}
	return nil
}

func isPrivate(ip net.IP) bool {
	for _, n := range privateBlocks {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func validateArgs(extraArgs string, allowedFlags []string) ([]string, error) {
	if len(extraArgs) > MaxArgsLen {
		return nil, ErrArgsTooLong
	}
	if extraArgs == "" {
		return nil, nil
	}
	if strings.ContainsAny(extraArgs, forbiddenChars) {
		return nil, ErrForbiddenChar
	}

	tokens, err := shlex.Split(extraArgs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	for _, tok := range tokens {
		if tok == "" || !tokenPattern.MatchString(tok) {
			return nil, ErrMalformedToken
		}
		if strings.HasPrefix(tok, "-") {
			if !flagAllowed(tok, allowedFlags) {
				return nil, ErrFlagNotAllowed
			}
		}
	}

	return tokens, nil
}

func flagAllowed(flag string, allowedFlags []string) bool {
	for _, prefix := range allowedFlags {
		if strings.HasPrefix(flag, prefix) {
			return true
		}
	}
	return false
}

func validateTimeout(requested float64, toolDefault time.Duration) (time.Duration, error) {
	if requested == 0 {
		if toolDefault <= 0 {
			return 300 * time.Second, nil
		}
		return clampTimeout(toolDefault), nil
	}
	if requested < 0 || math.IsNaN(requested) || math.IsInf(requested, 0) {
		return 0, ErrTimeoutOutOfRange
	}
	return clampTimeout(time.Duration(requested * float64(time.Second))), nil
}

func clampTimeout(d time.Duration) time.Duration {
	if d < MinTimeout {
		return MinTimeout
	}
	if d > MaxTimeoutSec {
		return MaxTimeoutSec
	}
	return d
}
