package signature

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/sha256"
	"math/big"
	"time"

	"github.com/containervault/containervault/internal/cryptocore/domain"
)

// ECCDSSSigner implements ECC_DSS: SHA-256 digest, deterministic ECDSA nonce
// generation per RFC 6979. crypto/ecdsa.Sign does not expose deterministic
// nonces, so the nonce derivation and scalar arithmetic are built directly on
// crypto/elliptic + math/big + crypto/hmac, reusing crypto/ecdsa only as the
// key material container (PrivateKey/PublicKey), not for the signing math.
type ECCDSSSigner struct{}

func (s *ECCDSSSigner) Sign(privateKey any, message []byte) (*domain.Signature, error) {
	priv, ok := privateKey.(*ecdsa.PrivateKey)
	if !ok {
		return nil, domain.ErrUnknownKeyType
	}

	timestamp := domain.NowISO8601(time.Now())
	hash := sha256.Sum256(messageAndTimestamp(message, timestamp))

	r, sVal, err := deterministicSign(priv.Curve, priv.D, hash[:])
	if err != nil {
		return nil, domain.ErrSignatureVerificationFailed
	}

	orderBytes := (priv.Curve.Params().N.BitLen() + 7) / 8
	out := make([]byte, 2*orderBytes)
	r.FillBytes(out[:orderBytes])
	sVal.FillBytes(out[orderBytes:])

	return &domain.Signature{Digest: out, TimestampUTC: timestamp}, nil
}

func (s *ECCDSSSigner) Verify(publicKey any, message []byte, sig *domain.Signature) error {
	pub, ok := publicKey.(*ecdsa.PublicKey)
	if !ok {
		return domain.ErrUnknownKeyType
	}

	orderBytes := (pub.Curve.Params().N.BitLen() + 7) / 8
	if len(sig.Digest) != 2*orderBytes {
		return domain.ErrSignatureVerificationFailed
	}
	r := new(big.Int).SetBytes(sig.Digest[:orderBytes])
	sVal := new(big.Int).SetBytes(sig.Digest[orderBytes:])

	hash := sha256.Sum256(messageAndTimestamp(message, sig.TimestampUTC))
	if !ecdsaVerify(pub.Curve, pub.X, pub.Y, hash[:], r, sVal) {
		return domain.ErrSignatureVerificationFailed
	}
	return nil
}

// deterministicSign implements ECDSA signing with the nonce k produced by
// RFC 6979 instead of a fresh random draw, so (d, hash) always yields the
// same signature.
func deterministicSign(curve elliptic.Curve, d *big.Int, hash []byte) (r, s *big.Int, err error) {
	n := curve.Params().N
	e := hashToInt(hash, n)

	for {
		k := rfc6979Nonce(curve, d, hash)
		x, _ := curve.ScalarBaseMult(k.Bytes())
		r = new(big.Int).Mod(x, n)
		if r.Sign() == 0 {
			continue
		}

		kInv := new(big.Int).ModInverse(k, n)
		s = new(big.Int).Mul(r, d)
		s.Add(s, e)
		s.Mul(s, kInv)
		s.Mod(s, n)
		if s.Sign() == 0 {
			continue
		}
		return r, s, nil
	}
}

// ecdsaVerify recomputes u1*G + u2*Q and checks its x-coordinate against r.
func ecdsaVerify(curve elliptic.Curve, qx, qy *big.Int, hash []byte, r, s *big.Int) bool {
	n := curve.Params().N
	if r.Sign() <= 0 || r.Cmp(n) >= 0 || s.Sign() <= 0 || s.Cmp(n) >= 0 {
		return false
	}

	e := hashToInt(hash, n)
	w := new(big.Int).ModInverse(s, n)
	if w == nil {
		return false
	}

	u1 := new(big.Int).Mul(e, w)
	u1.Mod(u1, n)
	u2 := new(big.Int).Mul(r, w)
	u2.Mod(u2, n)

	x1, y1 := curve.ScalarBaseMult(u1.Bytes())
	x2, y2 := curve.ScalarMult(qx, qy, u2.Bytes())
	x, y := curve.Add(x1, y1, x2, y2)
	if x.Sign() == 0 && y.Sign() == 0 {
		return false
	}

	x.Mod(x, n)
	return x.Cmp(r) == 0
}

// hashToInt truncates a hash to the curve order's bit length, per FIPS 186-4.
func hashToInt(hash []byte, n *big.Int) *big.Int {
	orderBits := n.BitLen()
	orderBytes := (orderBits + 7) / 8
	if len(hash) > orderBytes {
		hash = hash[:orderBytes]
	}

	ret := new(big.Int).SetBytes(hash)
	excess := len(hash)*8 - orderBits
	if excess > 0 {
		ret.Rsh(ret, uint(excess))
	}
	return ret
}

// rfc6979Nonce derives the deterministic per-message nonce k via the
// HMAC-DRBG construction of RFC 6979 section 3.2, using SHA-256 as the
// underlying hash for both the DRBG and the message digest.
func rfc6979Nonce(curve elliptic.Curve, d *big.Int, hash []byte) *big.Int {
	n := curve.Params().N
	qlen := n.BitLen()
	rolen := (qlen + 7) / 8

	holen := sha256.Size
	bx := append(int2octets(d, rolen), bits2octets(hash, n, qlen, rolen)...)

	v := bytesRepeat(0x01, holen)
	k := bytesRepeat(0x00, holen)

	k = hmacSum(k, append(append(append([]byte{}, v...), 0x00), bx...))
	v = hmacSum(k, v)
	k = hmacSum(k, append(append(append([]byte{}, v...), 0x01), bx...))
	v = hmacSum(k, v)

	for {
		var t []byte
		for len(t) < rolen {
			v = hmacSum(k, v)
			t = append(t, v...)
		}

		candidate := bits2int(t, qlen)
		if candidate.Sign() > 0 && candidate.Cmp(n) < 0 {
			return candidate
		}

		k = hmacSum(k, append(append([]byte{}, v...), 0x00))
		v = hmacSum(k, v)
	}
}

func hmacSum(key, message []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return mac.Sum(nil)
}

func bytesRepeat(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

func bits2int(in []byte, qlen int) *big.Int {
	v := new(big.Int).SetBytes(in)
	vlen := len(in) * 8
	if vlen > qlen {
		v.Rsh(v, uint(vlen-qlen))
	}
	return v
}

func int2octets(v *big.Int, rolen int) []byte {
	out := v.Bytes()
	if len(out) < rolen {
		padded := make([]byte, rolen)
		copy(padded[rolen-len(out):], out)
		return padded
	}
	if len(out) > rolen {
		return out[len(out)-rolen:]
	}
	return out
}

func bits2octets(in []byte, n *big.Int, qlen, rolen int) []byte {
	z1 := bits2int(in, qlen)
	z2 := new(big.Int).Sub(z1, n)
	if z2.Sign() < 0 {
		return int2octets(z1, rolen)
	}
	return int2octets(z2, rolen)
}
