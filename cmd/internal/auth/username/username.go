// Package username holds the one rule both credential mechanisms share: what
// a principal name may look like.
package username

import "regexp"

// MaxLength is the longest accepted username.
const MaxLength = 64

var re = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Valid reports whether s can be embedded in cookies, token strings and
// store keys without escaping.
func Valid(s string) bool { return re.MatchString(s) }
