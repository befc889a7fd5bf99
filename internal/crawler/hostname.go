package crawler

import (
	"strings"

	"golang.org/x/net/idna"
)

const (
	maxHostnameLength = 253
	maxLabelLength    = 63
)

// validHostname applies DNS hostname grammar: dot-separated labels of
// letters, digits and hyphens, no label starting or ending with a hyphen.
// Internationalized names are converted to their ASCII form first.
func validHostname(host string) bool {
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return false
	}
	ascii, err := idna.ToASCII(host)
	if err != nil {
		return false
	}
	if len(ascii) > maxHostnameLength {
		return false
	}
	for _, label := range strings.Split(ascii, ".") {
		if !validLabel(label) {
			return false
		}
	}
	return true
}

func validLabel(label string) bool {
	if label == "" || len(label) > maxLabelLength {
		return false
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
		default:
			return false
		}
	}
	return true
}
