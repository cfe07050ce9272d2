package platform

import (
	"strings"
)

// shellEscape wraps s in single quotes so the remote shell treats it as one
// literal word. Embedded single quotes become '\''.
func shellEscape(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
