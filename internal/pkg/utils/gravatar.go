package utils

import (
	"crypto/md5"
	"fmt"
	"strings"
)

// GetGravatarURL returns the Gravatar image for an email, falling back to
// the generic silhouette. Sizes of 0 or less mean 80px.
func GetGravatarURL(email string, size int) string {
	if size <= 0 {
		size = 80
	}
	hash := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%x?s=%d&d=mp", hash, size)
}
