package utils

import (
	"crypto/rand"
	"io"
	"math/big"

	"github.com/rotisserie/eris"
)

const shortIDAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// maxShortIDAttempts bounds the retry loop; with 62^6 ids it is never reached in practice.
const maxShortIDAttempts = 1000

// ShortIDGenerator produces short alphanumeric ids.
type ShortIDGenerator struct {
	Length int
	Rand   io.Reader
}

// NewShortIDGenerator returns a generator backed by crypto/rand.
func NewShortIDGenerator(length int) *ShortIDGenerator {
	return &ShortIDGenerator{Length: length, Rand: rand.Reader}
}

// Next returns an id for which taken reports false.
func (g *ShortIDGenerator) Next(taken func(string) bool) (string, error) {
	limit := big.NewInt(int64(len(shortIDAlphabet)))
	buf := make([]byte, g.Length)
	for attempt := 0; attempt < maxShortIDAttempts; attempt++ {
		for i := range buf {
			n, err := rand.Int(g.Rand, limit)
			if err != nil {
				return "", eris.Wrap(err, "failed to read random source")
			}
			buf[i] = shortIDAlphabet[n.Int64()]
		}
		id := string(buf)
		if !taken(id) {
			return id, nil
		}
	}
	return "", eris.New("no free id found")
}
