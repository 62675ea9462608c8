package auth

import (
	"fmt"
	"strings"
)

// Actions an operator can perform against a registered tool.
const (
	ActionCall   = "call"   // execute the tool
	ActionList   = "list"   // see the tool in listings
	ActionManage = "manage" // enable/disable the tool
)

// RolePolicy names the tools and actions one role may use. Tool entries
// support a trailing "*" wildcard ("nmap", "mass*", "*"); denials win over
// allowances so a role can be granted "*" minus specific scanners.
type RolePolicy struct {
	AllowedTools []string
	DeniedTools  []string
	Actions      []string
}

// Policy maps roles to tool access. The zero value denies everything.
type Policy struct {
	// Roles keys role name to its policy.
	Roles map[string]RolePolicy

	// DefaultRole is assumed for operators with no roles of their own.
	DefaultRole string
}

// AccessError reports a denied tool access with enough context to log.
type AccessError struct {
	Operator string
	Tool     string
	Action   string
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("auth: operator %q may not %s tool %q", e.Operator, e.Action, e.Tool)
}

// Authorize reports whether op may perform action against tool. A nil
// operator is always denied; the transport treats that as a 401 upstream,
// so reaching here with nil is a programming error answered safely.
func (p Policy) Authorize(op *Operator, tool, action string) error {
	if op == nil {
		return &AccessError{Tool: tool, Action: action}
	}

	roles := op.Roles
	if len(roles) == 0 && p.DefaultRole != "" {
		roles = []string{p.DefaultRole}
	}

	for _, name := range roles {
		role, ok := p.Roles[name]
		if !ok {
			continue
		}
		if role.permits(tool, action) {
			return nil
		}
	}
	return &AccessError{Operator: op.Name, Tool: tool, Action: action}
}

func (r RolePolicy) permits(tool, action string) bool {
	for _, denied := range r.DeniedTools {
		if matchTool(denied, tool) {
			return false
		}
	}

	allowed := false
	for _, pattern := range r.AllowedTools {
		if matchTool(pattern, tool) {
			allowed = true
			break
		}
	}
	if !allowed {
		return false
	}

	for _, a := range r.Actions {
		if a == "*" || a == action {
			return true
		}
	}
	return false
}

// matchTool matches a policy pattern against a tool name. "*" matches
// everything; a trailing "*" matches by prefix.
func matchTool(pattern, tool string) bool {
	if pattern == "*" {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(tool, prefix)
	}
	return pattern == tool
}
