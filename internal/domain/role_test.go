package domain

import (
	"errors"
	"testing"
)

func TestParseRole(t *testing.T) {
	cases := []struct {
		in   string
		want Role
	}{
		{"student", RoleStudent},
		{" Instructor ", RoleInstructor},
		{"PARENT", RoleParent},
		{"admin", RoleAdmin},
	}
	for _, tc := range cases {
		got, err := ParseRole(tc.in)
		if err != nil || got != tc.want {
			t.Fatalf("ParseRole(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}

	for _, bad := range []string{"", "teacher", "root"} {
		if _, err := ParseRole(bad); !errors.Is(err, ErrUnknownRole) {
			t.Fatalf("ParseRole(%q) err = %v; want ErrUnknownRole", bad, err)
		}
	}
}

func TestActor_IsInstructor(t *testing.T) {
	for _, r := range Roles() {
		a := Actor{UserID: "u", Role: r}
		if got := a.IsInstructor(); got != (r == RoleInstructor) {
			t.Fatalf("IsInstructor for %q = %v", r, got)
		}
	}
}
