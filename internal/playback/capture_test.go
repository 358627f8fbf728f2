package playback

import "testing"

func TestHeadBuffer(t *testing.T) {
	h := newHeadBuffer(5)
	n, err := h.Write([]byte("abc"))
	if n != 3 || err != nil {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if n, _ := h.Write([]byte("defgh")); n != 5 {
		t.Errorf("Write must report full length, got %d", n)
	}
	if got := h.String(); got != "abcde" {
		t.Errorf("String = %q", got)
	}
}

func TestDiagnostic(t *testing.T) {
	tests := []struct {
		stderr, stdout string
		limit          int
		want           string
	}{
		{"  err  ", "out", 300, "err"},
		{"", " out\n", 300, "out"},
		{"", "", 300, ""},
		{"héllo wörld", "", 5, "héllo"},
		{"abc", "", 0, "abc"},
	}
	for _, tt := range tests {
		if got := diagnostic(tt.stderr, tt.stdout, tt.limit); got != tt.want {
			t.Errorf("diagnostic(%q, %q, %d) = %q, want %q", tt.stderr, tt.stdout, tt.limit, got, tt.want)
		}
	}
}
