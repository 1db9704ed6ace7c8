package freekeys_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/containervault/containervault/internal/cryptocore/domain"
	"github.com/containervault/containervault/internal/freekeys"
)

type fakeKeystore struct {
	mu   sync.Mutex
	pool map[string][]*cryptoDomain.Keypair
}

func newFakeKeystore() *fakeKeystore {
	return &fakeKeystore{pool: make(map[string][]*cryptoDomain.Keypair)}
}

func (f *fakeKeystore) AddFreeKeypair(algorithm string, kp *cryptoDomain.Keypair) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pool[algorithm] = append(f.pool[algorithm], kp)
}

func (f *fakeKeystore) GetFreeKeypairsCount(algorithm string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pool[algorithm])
}

func stubKeygen(algo string) (*cryptoDomain.Keypair, error) {
	return &cryptoDomain.Keypair{PublicKeyPEM: []byte(algo)}, nil
}

func TestGenerateFreeKeypairForLeastProvisionedKeyAlgo_FillsToCeiling(t *testing.T) {
	ks := newFakeKeystore()
	algos := []string{"RSA_OAEP", "DSA_DSS"}
	ceiling := 10

	generated := 0
	for {
		ok, err := freekeys.GenerateFreeKeypairForLeastProvisionedKeyAlgo(ks, algos, ceiling, stubKeygen)
		require.NoError(t, err)
		if !ok {
			break
		}
		generated++
	}

	assert.Equal(t, len(algos)*ceiling, generated)
	assert.Equal(t, ceiling, ks.GetFreeKeypairsCount("RSA_OAEP"))
	assert.Equal(t, ceiling, ks.GetFreeKeypairsCount("DSA_DSS"))

	ok, err := freekeys.GenerateFreeKeypairForLeastProvisionedKeyAlgo(ks, algos, ceiling, stubKeygen)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGenerateFreeKeypairForLeastProvisionedKeyAlgo_BalancesPools(t *testing.T) {
	ks := newFakeKeystore()
	algos := []string{"ZZZ_ALGO", "AAA_ALGO"}

	for i := 0; i < 5; i++ {
		ok, err := freekeys.GenerateFreeKeypairForLeastProvisionedKeyAlgo(ks, algos, 100, stubKeygen)
		require.NoError(t, err)
		require.True(t, ok)
	}

	countA := ks.GetFreeKeypairsCount("AAA_ALGO")
	countZ := ks.GetFreeKeypairsCount("ZZZ_ALGO")
	diff := countA - countZ
	if diff < 0 {
		diff = -diff
	}
	assert.LessOrEqual(t, diff, 1)
}

func TestGenerateFreeKeypairForLeastProvisionedKeyAlgo_LexicalTieBreak(t *testing.T) {
	ks := newFakeKeystore()
	algos := []string{"ZZZ_ALGO", "AAA_ALGO", "MMM_ALGO"}

	ok, err := freekeys.GenerateFreeKeypairForLeastProvisionedKeyAlgo(ks, algos, 10, stubKeygen)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, 1, ks.GetFreeKeypairsCount("AAA_ALGO"))
	assert.Equal(t, 0, ks.GetFreeKeypairsCount("MMM_ALGO"))
	assert.Equal(t, 0, ks.GetFreeKeypairsCount("ZZZ_ALGO"))
}

func TestWorker_StartStopJoin(t *testing.T) {
	ks := newFakeKeystore()
	w := freekeys.New(freekeys.Config{
		MaxFreeKeysPerAlgo: 3,
		SleepOnOverflow:    10 * time.Millisecond,
		KeyAlgos:           []string{"RSA_OAEP", "DSA_DSS"},
		KeygenFunc:         stubKeygen,
	}, ks, nil)

	w.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ks.GetFreeKeypairsCount("RSA_OAEP") >= 3 && ks.GetFreeKeypairsCount("DSA_DSS") >= 3 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	assert.Equal(t, 3, ks.GetFreeKeypairsCount("RSA_OAEP"))
	assert.Equal(t, 3, ks.GetFreeKeypairsCount("DSA_DSS"))

	w.Stop()
	w.Join()

	w.Stop()
	w.Join()
}
