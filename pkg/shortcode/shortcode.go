// Package shortcode converts between Instagram shortcodes and numeric media IDs.
//
// A shortcode is a big-endian base-64 numeral over the alphabet
// A-Z a-z 0-9 - _, where each character's index in the alphabet is its digit.
package shortcode

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/iconidentify/linkgrab/internal/domain"
)

// Alphabet is the digit alphabet, in digit-value order.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// MediaIDLength is the number of leading shortcode characters that encode the media ID.
// Longer shortcodes (private posts) carry a trailing suffix that is not part of the ID.
const MediaIDLength = 11

var base = big.NewInt(int64(len(Alphabet)))

// Encode returns the shortcode for n. Encode(0) is the first alphabet character.
// Negative values are encoded as their absolute value.
func Encode(n *big.Int) string {
	v := new(big.Int).Abs(n)
	if v.Sign() == 0 {
		return Alphabet[:1]
	}

	var digits []byte
	mod := new(big.Int)
	for v.Sign() > 0 {
		v.DivMod(v, base, mod)
		digits = append(digits, Alphabet[mod.Int64()])
	}
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}
	return string(digits)
}

// EncodeUint64 is a convenience wrapper around Encode.
func EncodeUint64(n uint64) string {
	return Encode(new(big.Int).SetUint64(n))
}

// Decode returns the integer value of s. The empty string decodes to 0.
func Decode(s string) (*big.Int, error) {
	n := new(big.Int)
	for i := 0; i < len(s); i++ {
		d := strings.IndexByte(Alphabet, s[i])
		if d < 0 {
			return nil, fmt.Errorf("%w: %q at position %d", domain.ErrMalformedShortcode, s[i], i)
		}
		n.Mul(n, base)
		n.Add(n, big.NewInt(int64(d)))
	}
	return n, nil
}

// MediaID decodes the media ID embedded in an Instagram shortcode.
func MediaID(code string) (string, error) {
	if len(code) > MediaIDLength {
		code = code[:MediaIDLength]
	}
	n, err := Decode(code)
	if err != nil {
		return "", err
	}
	return n.String(), nil
}
