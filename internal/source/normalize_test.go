package source

import "testing"

func TestNormalizeURI(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, want string
	}{
		{"docs/readme.md", "docs/readme.md"},
		{"docs\\readme.md", "docs/readme.md"},
		{"docs/readme.md/", "docs/readme.md"},
		{"docs//readme.md", "docs/readme.md"},
		{"./docs/readme.md", "docs/readme.md"},
		{"", ""},
	}

	for _, c := range cases {
		if got := NormalizeURI(c.in); got != c.want {
			t.Errorf("NormalizeURI(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
