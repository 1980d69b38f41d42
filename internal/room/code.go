package room

import (
	"crypto/rand"
	"io"
	"math/big"
	"strings"

	"github.com/rotisserie/eris"
)

// CodeAlphabet leaves out the glyphs that are easy to confuse: 0/O and 1/I.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const CodeLength = 6

// GenerateCode draws a join code uniformly from CodeAlphabet. A nil reader
// uses crypto/rand.
func GenerateCode(r io.Reader) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	size := big.NewInt(int64(len(CodeAlphabet)))

	var b strings.Builder
	b.Grow(CodeLength)
	for i := 0; i < CodeLength; i++ {
		n, err := rand.Int(r, size)
		if err != nil {
			return "", eris.Wrap(err, "failed to read randomness for join code")
		}
		b.WriteByte(CodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
