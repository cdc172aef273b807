package guard

import "testing"

func TestDecide(t *testing.T) {
	policy := Policy{PrivilegedRole: "Admin", LimitedPrefix: "/app/stock"}

	tests := []struct {
		name         string
		role         string
		path         string
		wantAllow    bool
		wantRedirect string
	}{
		{"admin anywhere", "Admin", "/app/inventory", true, ""},
		{"admin root", "Admin", "/app", true, ""},
		{"admin limited", "Admin", "/app/stock/x", true, ""},
		{"staff outside limited", "Staff", "/app/inventory", false, "/app/stock"},
		{"staff limited root", "Staff", "/app/stock", true, ""},
		{"staff limited nested", "Staff", "/app/stock/x", true, ""},
		{"staff lookalike prefix", "Staff", "/app/stockroom", false, "/app/stock"},
		{"no user outside limited", "", "/app/inventory", false, "/app/stock"},
		{"no user limited nested", "", "/app/stock/x", true, ""},
		{"role match is exact", "admin", "/app/inventory", false, "/app/stock"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.Decide(tt.role, tt.path)

			if got.Allow != tt.wantAllow {
				t.Errorf("Allow = %v, want %v", got.Allow, tt.wantAllow)
			}
			if got.Redirect != tt.wantRedirect {
				t.Errorf("Redirect = %q, want %q", got.Redirect, tt.wantRedirect)
			}
		})
	}
}

func TestDecideEmptyPrivilegedRole(t *testing.T) {
	// An unset privileged role must not match an absent user role.
	policy := Policy{LimitedPrefix: "/app/stock"}

	if got := policy.Decide("", "/app/inventory"); got.Allow {
		t.Errorf("Allow = true for empty role against empty privileged role")
	}
}
