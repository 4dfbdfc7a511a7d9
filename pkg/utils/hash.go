package utils

import (
	"crypto/md5"
	"fmt"
	"strings"
)

// HashString returns a stable hex digest used for cache keys.
func HashString(input string) string {
	hash := md5.Sum([]byte(strings.TrimSpace(input)))
	return fmt.Sprintf("%x", hash)
}
