package model

import (
	"errors"
	"testing"
)

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"Reader":  RoleReader,
		"reader":  RoleReader,
		" EDITOR": RoleEditor,
		"admin":   RoleAdmin,
		"0":       RoleReader,
		"1":       RoleEditor,
		"2":       RoleAdmin,
	}
	for input, expected := range cases {
		role, err := ParseRole(input)
		if err != nil {
			t.Fatalf("role %q should be valid: %v", input, err)
		}
		if role != expected {
			t.Fatalf("role %q: expected %s got %s", input, expected, role)
		}
	}
	for _, input := range []string{"", "Leitor", "superuser", "3", "-1"} {
		if _, err := ParseRole(input); !errors.Is(err, ErrUnknownRole) {
			t.Fatalf("role %q: expected ErrUnknownRole, got %v", input, err)
		}
	}
}

func TestRoleValid(t *testing.T) {
	if !RoleEditor.Valid() {
		t.Fatalf("expected Editor to be valid")
	}
	if Role("editor").Valid() {
		t.Fatalf("expected non-canonical casing to be invalid")
	}
}
