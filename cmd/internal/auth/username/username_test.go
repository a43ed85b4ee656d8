package username

import (
	"strings"
	"testing"
)

func TestValid(t *testing.T) {
	for _, ok := range []string{"ann", "Ann_1", "a-b", strings.Repeat("x", MaxLength)} {
		if !Valid(ok) {
			t.Fatalf("expected %q valid", ok)
		}
	}
	for _, bad := range []string{"", "a.b", "a#b", "a b", strings.Repeat("x", MaxLength+1), "ünï", "ann\n"} {
		if Valid(bad) {
			t.Fatalf("expected %q invalid", bad)
		}
	}
}
