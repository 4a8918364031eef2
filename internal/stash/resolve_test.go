package stash

import (
	"reflect"
	"testing"
)

func testStash() *Stash {
	s := New()
	s.Put("userId", float64(7))
	s.Put("token", "tok_xyz")
	s.Put("active", true)
	s.Put("zero", float64(0))
	s.Put("empty", "")
	s.Put("profile", map[string]any{"name": "Bob"})
	return s
}

func TestResolve(t *testing.T) {
	s := testStash()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "no placeholders",
			input: "/users/list?sort=asc",
			want:  "/users/list?sort=asc",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
		{
			name:  "whole string is a placeholder",
			input: "{token}",
			want:  "tok_xyz",
		},
		{
			name:  "number in path",
			input: "/users/{userId}",
			want:  "/users/7",
		},
		{
			name:  "repeated placeholder",
			input: "{userId}-{userId}",
			want:  "7-7",
		},
		{
			name:  "multiple keys",
			input: `{"id": {userId}, "token": "{token}", "active": {active}}`,
			want:  `{"id": 7, "token": "tok_xyz", "active": true}`,
		},
		{
			name:  "placeholder inside a JSON document",
			input: "{\n  \"token\": \"{token}\"\n}",
			want:  "{\n  \"token\": \"tok_xyz\"\n}",
		},
		{
			name:  "unknown key left untouched",
			input: "/users/{missing}",
			want:  "/users/{missing}",
		},
		{
			name:  "zero value is still substituted",
			input: "page={zero}",
			want:  "page=0",
		},
		{
			name:  "empty string value",
			input: "[{empty}]",
			want:  "[]",
		},
		{
			name:  "object rendered as JSON",
			input: "{profile}",
			want:  `{"name":"Bob"}`,
		},
		{
			name:  "empty braces are not a placeholder",
			input: "{}",
			want:  "{}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Resolve(tt.input); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestResolve_SinglePass(t *testing.T) {
	s := New()
	s.Put("outer", "{inner}")
	s.Put("inner", "deep")

	if got := s.Resolve("{outer}"); got != "{inner}" {
		t.Errorf("Resolve() = %q, want %q (no recursive expansion)", got, "{inner}")
	}
}

func TestResolve_LastWriteWins(t *testing.T) {
	s := New()
	s.Put("id", "first")
	s.Put("id", "second")

	if got := s.Resolve("{id}"); got != "second" {
		t.Errorf("Resolve() = %q, want %q", got, "second")
	}
}

func TestPlaceholders(t *testing.T) {
	got := Placeholders("/orgs/{orgId}/users/{userId}?again={orgId}")
	want := []string{"orgId", "userId"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Placeholders() = %v, want %v", got, want)
	}

	if got := Placeholders("/health"); len(got) != 0 {
		t.Errorf("Placeholders() = %v, want none", got)
	}
}
