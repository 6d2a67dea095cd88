package version

import "testing"

func TestString(t *testing.T) {
	oldV, oldSHA := Version, GitSHA
	t.Cleanup(func() { Version, GitSHA = oldV, oldSHA })

	tests := []struct {
		version, sha, want string
	}{
		{"dev", "unknown", "dev (unknown)"},
		{"v0.3.1", "4f2a9c1e8b7d", "v0.3.1 (4f2a9c1)"},
		{"v1.0.0", "abc", "v1.0.0 (abc)"},
	}
	for _, tt := range tests {
		Version, GitSHA = tt.version, tt.sha
		if got := String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
