// Package freekeys implements a background producer that keeps each
// configured algorithm's free keypair pool
// topped up to a ceiling, so Escrow materialization can usually promote a
// pre-generated keypair instead of generating one synchronously on the
// request path.
package freekeys

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	cryptoDomain "github.com/containervault/containervault/internal/cryptocore/domain"
)

// KeygenFunc generates a fresh asymmetric keypair for algo.
type KeygenFunc func(algo string) (*cryptoDomain.Keypair, error)

// Keystore is the subset of internal/keystore.Keystore the worker needs.
type Keystore interface {
	AddFreeKeypair(algorithm string, kp *cryptoDomain.Keypair)
	GetFreeKeypairsCount(algorithm string) int
}

// Config holds Worker configuration.
type Config struct {
	MaxFreeKeysPerAlgo int
	SleepOnOverflow    time.Duration
	KeyAlgos           []string
	KeygenFunc         KeygenFunc
}

// state is the worker's state machine position: stopped -> running ->
// stopping -> stopped.
type state int

const (
	stateStopped state = iota
	stateRunning
	stateStopping
)

// Worker is the Free-Keys Worker. Its zero value is not usable; build one
// with New.
type Worker struct {
	config   Config
	keystore Keystore
	logger   *slog.Logger

	mu     sync.Mutex
	state  state
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Worker over ks using config.
func New(config Config, ks Keystore, logger *slog.Logger) *Worker {
	return &Worker{
		config:   config,
		keystore: ks,
		logger:   logger,
		state:    stateStopped,
	}
}

// Start transitions stopped → running and begins the background loop.
// Idempotent: calling Start while already running is a no-op.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != stateStopped {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.state = stateRunning

	if w.logger != nil {
		w.logger.Info("starting free-keys worker",
			slog.Int("max_free_keys_per_algo", w.config.MaxFreeKeysPerAlgo),
			slog.Any("key_algos", w.config.KeyAlgos),
		)
	}

	go w.run(runCtx)
}

// Stop transitions running → stopping. Safe to call from any goroutine;
// idempotent. Returns immediately; use Join to wait for exit.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != stateRunning {
		return
	}
	w.state = stateStopping
	w.cancel()
}

// Join blocks until the worker goroutine has exited.
func (w *Worker) Join() {
	w.mu.Lock()
	done := w.done
	w.mu.Unlock()

	if done == nil {
		return
	}
	<-done
}

func (w *Worker) run(ctx context.Context) {
	defer func() {
		w.mu.Lock()
		w.state = stateStopped
		close(w.done)
		w.mu.Unlock()

		if w.logger != nil {
			w.logger.Info("stopped free-keys worker")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		generated, err := GenerateFreeKeypairForLeastProvisionedKeyAlgo(w.keystore, w.config.KeyAlgos, w.config.MaxFreeKeysPerAlgo, w.config.KeygenFunc)
		if err != nil {
			if w.logger != nil {
				w.logger.Error("failed to generate free keypair", slog.Any("error", err))
			}
			// Back off on keygen failure so a persistent error does not spin.
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.config.SleepOnOverflow):
			}
			continue
		}

		if generated {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.config.SleepOnOverflow):
		}
	}
}

// GenerateFreeKeypairForLeastProvisionedKeyAlgo is the one-shot helper: it
// picks the algorithm in keyAlgos with the smallest free-pool count (ties
// broken by ascending lexical name), and if that count is
// below ceiling, generates one keypair via keygenFunc and pushes it into
// the pool. Returns true if it generated a key, false if every algorithm
// is already at ceiling.
func GenerateFreeKeypairForLeastProvisionedKeyAlgo(
	ks Keystore,
	keyAlgos []string,
	ceiling int,
	keygenFunc KeygenFunc,
) (bool, error) {
	algo, ok := leastProvisionedAlgo(ks, keyAlgos, ceiling)
	if !ok {
		return false, nil
	}

	kp, err := keygenFunc(algo)
	if err != nil {
		return false, err
	}

	ks.AddFreeKeypair(algo, kp)
	return true, nil
}

// leastProvisionedAlgo returns the algorithm with the smallest free-pool
// count below ceiling, ties broken lexically. ok is false when every
// algorithm is already at or above ceiling.
func leastProvisionedAlgo(ks Keystore, keyAlgos []string, ceiling int) (algo string, ok bool) {
	sorted := make([]string, len(keyAlgos))
	copy(sorted, keyAlgos)
	sort.Strings(sorted)

	best := ""
	bestCount := -1

	for _, a := range sorted {
		count := ks.GetFreeKeypairsCount(a)
		if count >= ceiling {
			continue
		}
		if bestCount == -1 || count < bestCount {
			best = a
			bestCount = count
		}
	}

	if bestCount == -1 {
		return "", false
	}
	return best, true
}
