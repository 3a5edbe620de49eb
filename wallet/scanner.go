// Copyright (c) 2024 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package wallet

import (
	"errors"
	"sync"

	"github.com/federava/week2/crypto"
	"github.com/federava/week2/pool"
	"github.com/federava/week2/types"
	"golang.org/x/sync/errgroup"
)

// ErrNoMatchingOutput means none of the scanned events was addressed
// to the key.
var ErrNoMatchingOutput = errors.New("no matching output")

// Scanner walks an ordered list of commitment events. Each event is
// returned once until Reset is called.
type Scanner struct {
	events []*pool.CommitmentEvent
	pos    int
	mtx    sync.Mutex
}

// NewScanner returns a Scanner over events.
func NewScanner(events []*pool.CommitmentEvent) *Scanner {
	return &Scanner{events: events}
}

// Next returns the next unread event.
func (s *Scanner) Next() (*pool.CommitmentEvent, bool) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.pos >= len(s.events) {
		return nil, false
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, true
}

// Reset rewinds the scanner to the first event.
func (s *Scanner) Reset() {
	s.mtx.Lock()
	s.pos = 0
	s.mtx.Unlock()
}

// TryDecrypt attempts to open the event with kp. It returns nil if the
// output is not addressed to kp or if the decrypted note does not
// match the published commitment.
func TryDecrypt(kp *crypto.Keypair, ev *pool.CommitmentEvent) *types.Note {
	n, err := types.DecryptNote(kp, ev.EncryptedOutput, ev.Index)
	if err != nil {
		return nil
	}
	if n.Commitment() != ev.Commitment {
		log.Warn("Decrypted note does not match its commitment", log.Args("index", ev.Index))
		return nil
	}
	return n
}

// FindNote returns the first note in events owned by kp.
func FindNote(kp *crypto.Keypair, events []*pool.CommitmentEvent) (*types.Note, error) {
	s := NewScanner(events)
	for {
		ev, ok := s.Next()
		if !ok {
			return nil, ErrNoMatchingOutput
		}
		if n := TryDecrypt(kp, ev); n != nil {
			return n, nil
		}
	}
}

// ScanEvents tries every key against every event in parallel and
// returns the notes found for each key, in event order.
func ScanEvents(keys []*crypto.Keypair, events []*pool.CommitmentEvent) ([][]*types.Note, error) {
	found := make([][]*types.Note, len(keys))
	var g errgroup.Group
	for i, kp := range keys {
		i, kp := i, kp
		g.Go(func() error {
			if kp == nil {
				return errors.New("nil keypair")
			}
			for _, ev := range events {
				if n := TryDecrypt(kp, ev); n != nil {
					found[i] = append(found[i], n)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return found, nil
}
