/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package room

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// Source produces uniformly distributed integers in [0, n).
type Source interface {
	Intn(n int) int
}

type cryptoSource struct{}

// NewCryptoSource returns a Source backed by crypto/rand.
func NewCryptoSource() Source {
	return cryptoSource{}
}

// Intn panics if n <= 0 or if crypto/rand fails.
func (cryptoSource) Intn(n int) int {
	if n <= 0 {
		panic("room: Intn called with n <= 0")
	}
	val, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("room: crypto/rand failure: " + err.Error())
	}
	return int(val.Int64())
}

const (
	CodeLength   = 6
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

func newCode(src Source) string {
	out := make([]byte, CodeLength)
	for i := range out {
		out[i] = codeAlphabet[src.Intn(len(codeAlphabet))]
	}
	return string(out)
}

// NormalizeCode uppercases and trims a client-supplied room code and reports
// whether the result is a well-formed code.
func NormalizeCode(code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != CodeLength {
		return code, false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(codeAlphabet, code[i]) < 0 {
			return code, false
		}
	}
	return code, true
}
