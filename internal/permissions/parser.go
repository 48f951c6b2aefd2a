// Package permissions parses the octal mode strings pkgar's CLI accepts
// for its --mode override flags, adapted from the teacher's generic
// permission-string helper into pkgar's narrower need: one override value
// applied uniformly across a directory walk.
package permissions

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultFilePerms is used when an override string is empty.
const DefaultFilePerms = 0o644

// ParseOctalString parses an octal permission string into its numeric
// value. It accepts "755", "0755" and "0o755" forms; an empty string
// yields DefaultFilePerms.
func ParseOctalString(s string) (uint32, error) {
	if s == "" {
		return DefaultFilePerms, nil
	}

	trimmed := strings.TrimPrefix(s, "0o")
	trimmed = strings.TrimPrefix(trimmed, "0")
	if trimmed == "" {
		// the input was exactly "0" or "00" etc.
		return 0, nil
	}

	val, err := strconv.ParseUint(trimmed, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("permissions: invalid mode string %q: %w", s, err)
	}
	return uint32(val), nil
}

// FormatOctal renders perm back as a "0NNN"-style octal string.
func FormatOctal(perm uint32) string {
	return fmt.Sprintf("0%o", perm)
}
