package main

import "testing"

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short stays untouched", "short", 10, "short"},
		{"exact length untouched", "abcde", 5, "abcde"},
		{"ascii truncated", "abcdefghij", 5, "abcd…"},
		{"multi-byte title truncated on rune boundary", "Översyn av städavtal – region söder", 10, "Översyn a…"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncate(tt.in, tt.n); got != tt.want {
				t.Fatalf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
		})
	}
}
