// Package shortener builds short public codes: base62 listing links and
// random referral codes.
package shortener

import (
	"crypto/rand"
	"fmt"
	"strings"
)

const (
	// Base62 is the alphabet of share links.
	Base62 = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	// Referral is the alphabet of referral codes. Upper case only, codes are read aloud.
	Referral = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// RandomCode returns a cryptographically random code drawn from alphabet.
func RandomCode(alphabet string, length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid code length: %d", length)
	}
	if len(alphabet) < 2 || len(alphabet) > 256 {
		return "", fmt.Errorf("invalid alphabet size: %d", len(alphabet))
	}

	// Rejection sampling to avoid modulo bias.
	maxRandomByte := 256 - 256%len(alphabet)

	code := make([]byte, length)
	buf := make([]byte, length*2)
	written := 0

	for written < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read secure random bytes: %w", err)
		}

		for _, b := range buf {
			if int(b) >= maxRandomByte {
				continue
			}
			code[written] = alphabet[int(b)%len(alphabet)]
			written++
			if written == length {
				break
			}
		}
	}

	return string(code), nil
}

// EncodeID turns a numeric id into its base62 share code.
func EncodeID(id uint) string {
	if id == 0 {
		return string(Base62[0])
	}

	base := uint(len(Base62))
	var buf [16]byte
	i := len(buf)
	for id > 0 {
		i--
		buf[i] = Base62[id%base]
		id /= base
	}
	return string(buf[i:])
}

// DecodeID reverses EncodeID. Codes with characters outside Base62 or that
// overflow are rejected.
func DecodeID(code string) (uint, bool) {
	if code == "" || len(code) > 10 {
		return 0, false
	}
	base := uint64(len(Base62))
	var id uint64
	for i := 0; i < len(code); i++ {
		value := strings.IndexByte(Base62, code[i])
		if value == -1 {
			return 0, false
		}
		id = id*base + uint64(value)
	}
	if id > uint64(^uint32(0)) {
		return 0, false
	}
	return uint(id), true
}
