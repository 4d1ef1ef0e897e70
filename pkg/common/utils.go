package common

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateCode returns prefix followed by n random characters from A-Z0-9.
func GenerateCode(prefix string, n int) string {
	result := make([]byte, n)
	max := big.NewInt(int64(len(codeCharset)))
	for i := range result {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken
			panic(err)
		}
		result[i] = codeCharset[idx.Int64()]
	}
	return prefix + string(result)
}

func GenerateWithdrawalCode() string {
	return GenerateCode("WD", 10)
}

// GenerateSlug returns a lowercase 8 character slug for a new referral link.
func GenerateSlug() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
