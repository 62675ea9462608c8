package auth

import (
	"errors"
	"testing"
)

func scanPolicy() Policy {
	return Policy{
		Roles: map[string]RolePolicy{
			"operator": {
				AllowedTools: []string{"*"},
				Actions:      []string{ActionCall, ActionList, ActionManage},
			},
			"auditor": {
				AllowedTools: []string{"*"},
				DeniedTools:  []string{"mass*"},
				Actions:      []string{ActionCall, ActionList},
			},
			"reader": {
				AllowedTools: []string{"*"},
				Actions:      []string{ActionList},
			},
		},
		DefaultRole: "reader",
	}
}

func TestAuthorize_OperatorMayManage(t *testing.T) {
	p := scanPolicy()
	op := &Operator{Name: "oncall", Roles: []string{"operator"}}

	for _, action := range []string{ActionCall, ActionList, ActionManage} {
		if err := p.Authorize(op, "nmap", action); err != nil {
			t.Errorf("Authorize(%s) = %v", action, err)
		}
	}
}

func TestAuthorize_DenialWinsOverWildcard(t *testing.T) {
	p := scanPolicy()
	op := &Operator{Name: "aud", Roles: []string{"auditor"}}

	if err := p.Authorize(op, "nmap", ActionCall); err != nil {
		t.Fatalf("nmap call should be allowed: %v", err)
	}
	if err := p.Authorize(op, "masscan", ActionCall); err == nil {
		t.Fatal("masscan must be denied to auditors")
	}
}

func TestAuthorize_ActionOutsideRoleDenied(t *testing.T) {
	p := scanPolicy()
	op := &Operator{Name: "aud", Roles: []string{"auditor"}}

	err := p.Authorize(op, "nmap", ActionManage)
	var accessErr *AccessError
	if !errors.As(err, &accessErr) {
		t.Fatalf("err = %v, want *AccessError", err)
	}
	if accessErr.Tool != "nmap" || accessErr.Action != ActionManage {
		t.Errorf("AccessError = %+v", accessErr)
	}
}

func TestAuthorize_DefaultRoleForRolelessOperator(t *testing.T) {
	p := scanPolicy()
	op := &Operator{Name: "guest"}

	if err := p.Authorize(op, "nmap", ActionList); err != nil {
		t.Fatalf("default reader role should list: %v", err)
	}
	if err := p.Authorize(op, "nmap", ActionCall); err == nil {
		t.Fatal("default reader role must not call")
	}
}

func TestAuthorize_NilOperatorDenied(t *testing.T) {
	if err := scanPolicy().Authorize(nil, "nmap", ActionCall); err == nil {
		t.Fatal("nil operator must be denied")
	}
}

func TestAuthorize_ZeroPolicyDeniesEverything(t *testing.T) {
	var p Policy
	op := &Operator{Name: "x", Roles: []string{"operator"}}
	if err := p.Authorize(op, "nmap", ActionList); err == nil {
		t.Fatal("zero policy must deny")
	}
}

func TestMatchTool(t *testing.T) {
	cases := []struct {
		pattern, tool string
		want          bool
	}{
		{"*", "anything", true},
		{"nmap", "nmap", true},
		{"nmap", "nmap2", false},
		{"mass*", "masscan", true},
		{"mass*", "nmap", false},
	}
	for _, c := range cases {
		if got := matchTool(c.pattern, c.tool); got != c.want {
			t.Errorf("matchTool(%q, %q) = %v, want %v", c.pattern, c.tool, got, c.want)
		}
	}
}
