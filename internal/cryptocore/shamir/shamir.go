// Package shamir implements splitting and recombining arbitrary-length
// bytestrings via a 128-bit-chunked (k, n) Shamir secret-sharing scheme over
// GF(256), with byte-oriented finite-field arithmetic (multiply, inverse,
// Lagrange interpolation).
package shamir

import (
	"crypto/rand"

	"github.com/containervault/containervault/internal/cryptocore/domain"
)

const chunkSize = 16

// Share is one participant's slice of a split secret: an index in 1..n and
// the concatenation of that index's per-chunk shares.
type Share struct {
	Index      int
	ShareBytes []byte
}

// Split pads secret to a multiple of chunkSize with PKCS#7, splits each chunk
// into an (k, n) Shamir share set over GF(256), and reassembles per-index
// byte strings across all chunks. Shares are returned ordered by ascending
// index.
func Split(secret []byte, n, k int) ([]Share, error) {
	if k < 1 || n < 1 || k >= n {
		return nil, domain.ErrInvalidShareParameters
	}

	padded := pkcs7Pad(secret, chunkSize)

	shares := make([]Share, n)
	for i := range shares {
		shares[i] = Share{Index: i + 1, ShareBytes: make([]byte, 0, len(padded))}
	}

	for off := 0; off < len(padded); off += chunkSize {
		chunk := padded[off : off+chunkSize]
		coeffs := make([][]byte, k)
		coeffs[0] = chunk
		for c := 1; c < k; c++ {
			random := make([]byte, chunkSize)
			if _, err := rand.Read(random); err != nil {
				return nil, err
			}
			coeffs[c] = random
		}

		for i := range shares {
			x := byte(i + 1)
			y := evalPolynomial(coeffs, x)
			shares[i].ShareBytes = append(shares[i].ShareBytes, y...)
		}
	}

	return shares, nil
}

// Combine reconstructs the original secret from any k-subset of Split's
// output shares. All share indices must be distinct and all ShareBytes must
// be equal length; any inconsistency is a fatal error.
func Combine(shares []Share) ([]byte, error) {
	if len(shares) == 0 {
		return nil, domain.ErrInconsistentShares
	}

	shareLen := len(shares[0].ShareBytes)
	seen := make(map[int]struct{}, len(shares))
	for _, s := range shares {
		if len(s.ShareBytes) != shareLen || shareLen == 0 || shareLen%chunkSize != 0 {
			return nil, domain.ErrInconsistentShares
		}
		if _, dup := seen[s.Index]; dup {
			return nil, domain.ErrInconsistentShares
		}
		seen[s.Index] = struct{}{}
	}

	padded := make([]byte, 0, shareLen)
	for off := 0; off < shareLen; off += chunkSize {
		chunk := make([]byte, chunkSize)
		for i, s := range shares {
			li := lagrangeCoefficientAtZero(i, shares)
			part := s.ShareBytes[off : off+chunkSize]
			for b := 0; b < chunkSize; b++ {
				chunk[b] ^= gfMul(li, part[b])
			}
		}
		padded = append(padded, chunk...)
	}

	return pkcs7Unpad(padded, chunkSize, domain.ErrInconsistentShares)
}

// evalPolynomial evaluates, byte-position by byte-position, the degree-(k-1)
// polynomial whose coefficients are coeffs[0..k-1] (coeffs[0] is the secret
// chunk) at the field element x, returning the chunkSize-byte result.
func evalPolynomial(coeffs [][]byte, x byte) []byte {
	out := make([]byte, chunkSize)
	for b := 0; b < chunkSize; b++ {
		var acc byte
		for c := len(coeffs) - 1; c >= 0; c-- {
			acc = gfMul(acc, x) ^ coeffs[c][b]
		}
		out[b] = acc
	}
	return out
}

// lagrangeCoefficientAtZero computes the Lagrange basis coefficient for
// shares[i] evaluated at x=0, the standard Shamir reconstruction weight.
func lagrangeCoefficientAtZero(i int, shares []Share) byte {
	xi := byte(shares[i].Index)
	num, den := byte(1), byte(1)
	for j, s := range shares {
		if j == i {
			continue
		}
		xj := byte(s.Index)
		num = gfMul(num, xj)
		den = gfMul(den, xj^xi)
	}
	return gfDiv(num, den)
}

// gfMul multiplies two GF(2^8) elements under the AES reduction
// polynomial 0x11B.
func gfMul(a, b byte) byte {
	var p byte
	for b > 0 {
		if b&1 == 1 {
			p ^= a
		}
		hi := a & 0x80
		a <<= 1
		if hi != 0 {
			a ^= 0x1B
		}
		b >>= 1
	}
	return p
}

// gfInv computes the multiplicative inverse in GF(2^8) by brute-force search
// over the 255 nonzero elements; the field is small enough that this is
// constant enough in practice and needs no extended-Euclid implementation.
func gfInv(a byte) byte {
	if a == 0 {
		panic("shamir: inverse of zero")
	}
	for candidate := 1; candidate < 256; candidate++ {
		if gfMul(a, byte(candidate)) == 1 {
			return byte(candidate)
		}
	}
	panic("shamir: no inverse found")
}

func gfDiv(a, b byte) byte {
	return gfMul(a, gfInv(b))
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int, onError error) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, onError
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, onError
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, onError
		}
	}
	return data[:len(data)-padLen], nil
}
