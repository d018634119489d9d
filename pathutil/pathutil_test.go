package pathutil

import (
	"strings"
	"testing"

	"github.com/adobe/dcxsync/dcxerrors"
)

func TestValidateSegmentAccepts(t *testing.T) {
	for _, s := range []string{"a", "a.bin", "My Photo.jpg", strings.Repeat("x", 255)} {
		if err := ValidateSegment(s); err != nil {
			t.Errorf("ValidateSegment(%q) = %v, want nil", s, err)
		}
	}
}

func TestValidateSegmentRejects(t *testing.T) {
	cases := []string{
		"",
		strings.Repeat("x", 256),
		"trailing.",
		"has/slash",
		"has:colon",
		"has*star",
		"has?question",
		"has\"quote",
		"has<lt",
		"has>gt",
		`has\backslash`,
		"control\x01char",
		"del\x7fchar",
	}
	for _, s := range cases {
		err := ValidateSegment(s)
		if err == nil {
			t.Errorf("ValidateSegment(%q) = nil, want error", s)
			continue
		}
		if !dcxerrors.Is(err, dcxerrors.InvalidPath) {
			t.Errorf("ValidateSegment(%q) kind = %v, want InvalidPath", s, err)
		}
	}
}

func TestJoinAbsoluteSkipsTransparentSegments(t *testing.T) {
	got := JoinAbsolute("a", "", "b", "c")
	if want := "a/b/c"; got != want {
		t.Errorf("JoinAbsolute = %q, want %q", got, want)
	}
}

func TestNewIDUnique(t *testing.T) {
	a, b := NewID(), NewID()
	if a == b {
		t.Errorf("NewID returned duplicate ids: %q", a)
	}
}
