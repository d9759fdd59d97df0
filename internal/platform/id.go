package platform

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

const shortIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func NewID() string {
	return uuid.New().String()
}

// RemoteUserID derives the Nextcloud user id for a tenant email. The local
// part is slugified and a short hash of the full address is appended, so the
// same email always maps to the same id while addresses sharing a local part
// map to distinct ids.
func RemoteUserID(email string) string {
	local := email
	if at := strings.Index(email, "@"); at >= 0 {
		local = email[:at]
	}
	sum := md5.Sum([]byte(email))
	return Slug(local) + "_" + hex.EncodeToString(sum[:])[:6]
}

// Slug lowercases s and collapses every run of non-alphanumeric characters
// into a single underscore.
func Slug(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		default:
			pendingSep = true
		}
	}
	return b.String()
}

// NewPassword generates a random password of n lowercase/digit characters
// plus a fixed suffix covering the character classes Nextcloud's default
// password policy requires. The password is never derived from user input.
func NewPassword(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand: " + err.Error())
	}
	for i := range b {
		b[i] = shortIDAlphabet[b[i]%byte(len(shortIDAlphabet))]
	}
	return string(b) + "Xk7!"
}

// NewToken generates a random alphanumeric token of n characters, used for
// single-use SSO login tokens.
func NewToken(n int) string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand: " + err.Error())
	}
	for i := range b {
		b[i] = alphabet[b[i]%byte(len(alphabet))]
	}
	return string(b)
}
