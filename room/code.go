package room

import (
	crand "crypto/rand"
	"math/big"
	"math/rand"
	"strings"
)

// CodeChars 去掉了容易混淆的 0/O、1/I
const CodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// DefaultCodeLength is used when the manager is built with a non-positive length.
const DefaultCodeLength = 6

// GenerateCode creates a random join code of length characters.
func GenerateCode(length int) string {
	if length <= 0 {
		length = DefaultCodeLength
	}
	code := make([]byte, length)
	max := big.NewInt(int64(len(CodeChars)))
	for i := range code {
		n, err := crand.Int(crand.Reader, max)
		if err != nil {
			// fallback to math/rand if crypto fails
			code[i] = CodeChars[rand.Intn(len(CodeChars))]
			continue
		}
		code[i] = CodeChars[n.Int64()]
	}
	return string(code)
}

// NormalizeCode makes user-typed codes comparable.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
