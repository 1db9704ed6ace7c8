package shamir

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitCombine_RoundTrip(t *testing.T) {
	secrets := [][]byte{
		[]byte("hello world"),
		{},
		make([]byte, 100),
		[]byte("a single byte test of padding edge cases across chunk boundaries"),
	}

	for _, secret := range secrets {
		for n := 2; n <= 6; n++ {
			for k := 1; k < n; k++ {
				shares, err := Split(secret, n, k)
				require.NoError(t, err)
				require.Len(t, shares, n)

				got, err := Combine(shares[:k])
				require.NoError(t, err)
				assert.Equal(t, secret, got)
			}
		}
	}
}

func TestSplit_SharesOrderedAscending(t *testing.T) {
	shares, err := Split([]byte("abc"), 5, 3)
	require.NoError(t, err)
	for i, s := range shares {
		assert.Equal(t, i+1, s.Index)
	}
}

func TestCombine_AnyKSubset(t *testing.T) {
	secret := []byte("threshold secret sharing works across subsets")
	shares, err := Split(secret, 5, 3)
	require.NoError(t, err)

	subsets := [][]int{{0, 1, 2}, {1, 2, 3}, {0, 2, 4}, {2, 3, 4}}
	for _, idxs := range subsets {
		subset := make([]Share, 0, len(idxs))
		for _, idx := range idxs {
			subset = append(subset, shares[idx])
		}
		got, err := Combine(subset)
		require.NoError(t, err)
		assert.Equal(t, secret, got)
	}
}

func TestCombine_DuplicateIndexFails(t *testing.T) {
	shares, err := Split([]byte("abc"), 3, 2)
	require.NoError(t, err)
	_, err = Combine([]Share{shares[0], shares[0]})
	assert.Error(t, err)
}

func TestCombine_InconsistentLengthFails(t *testing.T) {
	shares, err := Split([]byte("abc"), 3, 2)
	require.NoError(t, err)
	bad := shares[1]
	bad.ShareBytes = bad.ShareBytes[:len(bad.ShareBytes)-1]
	_, err = Combine([]Share{shares[0], bad})
	assert.Error(t, err)
}

func TestSplit_InvalidKN(t *testing.T) {
	_, err := Split([]byte("abc"), 2, 2)
	assert.Error(t, err)
	_, err = Split([]byte("abc"), 2, 0)
	assert.Error(t, err)
}

func TestSplitCombine_RandomSecret(t *testing.T) {
	secret := make([]byte, 257)
	_, err := rand.Read(secret)
	require.NoError(t, err)

	shares, err := Split(secret, 7, 4)
	require.NoError(t, err)

	got, err := Combine(shares[:4])
	require.NoError(t, err)
	assert.Equal(t, secret, got)
}
