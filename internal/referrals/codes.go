package referrals

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

const (
	// CodeAlphabet omits 0, O, 1 and I so codes survive being read aloud.
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	CodeLength   = 8
)

var codePattern = regexp.MustCompile(`^[A-HJ-NP-Z2-9]{8}$`)

// NormalizeCode trims and upper-cases user input.
func NormalizeCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// ValidCode reports whether code is a well-formed, normalized referral code.
func ValidCode(code string) bool {
	return codePattern.MatchString(code)
}

// GenerateCode draws CodeLength characters from CodeAlphabet using crypto/rand.
func GenerateCode() (string, error) {
	return randomString(CodeAlphabet, CodeLength)
}

func randomString(alphabet string, length int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("reading random source: %w", err)
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String(), nil
}
