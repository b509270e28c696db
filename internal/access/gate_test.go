package access

import "testing"

func TestHasRole(t *testing.T) {
	cases := []struct {
		name     string
		roles    []string
		required string
		want     bool
	}{
		{"member holds role", []string{"r1", "staff"}, "staff", true},
		{"member lacks role", []string{"r1", "r2"}, "staff", false},
		{"no roles", nil, "staff", false},
		{"empty required denies", []string{"r1"}, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := HasRole(tc.roles, tc.required); got != tc.want {
				t.Fatalf("HasRole(%v, %q) = %v; want %v", tc.roles, tc.required, got, tc.want)
			}
		})
	}
}

func TestPanelAllows(t *testing.T) {
	cases := []struct {
		name    string
		roles   []string
		allowed []string
		want    bool
	}{
		{"intersection", []string{"r1", "r2"}, []string{"r2", "r3"}, true},
		{"disjoint", []string{"r1"}, []string{"r2"}, false},
		{"empty allow-list denies everyone", []string{"premium"}, nil, false},
		{"empty allow-list denies privileged too", []string{"staff", "premium"}, []string{}, false},
		{"no member roles", nil, []string{"r1"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := PanelAllows(tc.roles, tc.allowed); got != tc.want {
				t.Fatalf("PanelAllows(%v, %v) = %v; want %v", tc.roles, tc.allowed, got, tc.want)
			}
		})
	}
}
