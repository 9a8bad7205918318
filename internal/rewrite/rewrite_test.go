package rewrite

import "testing"

func TestRewrite(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/images/rio/1.jpg", "/images/rio/1.jpg/original"},
		{"/images/rio/1.jpg/original", "/images/rio/1.jpg/original"},
		{"/images/rio/1.jpg/format=webp,width=200", "/images/rio/1.jpg/format=webp,width=200"},
		{"/images/rio/1.jpg?foo=bar", "/images/rio/1.jpg/original"},
		{"/images//rio///1.jpg", "/images/rio/1.jpg/original"},
		{"/images/rio/1.jpg/", "/images/rio/1.jpg/original"},
		{"/images/rio/1.jpg#frag", "/images/rio/1.jpg/original"},
		{"/", "/"},
		{"", "/"},
	}

	for _, tt := range tests {
		if got := Rewrite(tt.in); got != tt.want {
			t.Errorf("Rewrite(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRewriteIsIdempotent(t *testing.T) {
	inputs := []string{
		"/images/rio/1.jpg",
		"/images/rio/1.jpg/original",
		"/images/rio/1.jpg/width=100",
		"/images//rio/1.jpg?x=1",
	}
	for _, in := range inputs {
		once := Rewrite(in)
		if twice := Rewrite(once); twice != once {
			t.Errorf("Rewrite not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}
