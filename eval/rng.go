// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package eval

import (
	"crypto/rand"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/chacha20"
)

// chachaSource is a math/rand.Source64 backed by the vetted
// golang.org/x/crypto/chacha20 stream cipher, keyed from system entropy
// (spec §4.2 "RNG seeded from system entropy"). It replaces the
// teacher's hand-rolled 8-round ChaCha variant (vm/chacha8.go, used
// there for hashing, not randomness) with the pack's own crypto
// dependency applied to the concern the spec actually names: the
// `random()` primitive's entropy source.
type chachaSource struct {
	cipher *chacha20.Cipher
	buf    [64]byte
	off    int
}

func newChachaSource(seed []byte) *chachaSource {
	var key [chacha20.KeySize]byte
	copy(key[:], seed)
	c, err := chacha20.NewUnauthenticatedCipher(key[:], make([]byte, chacha20.NonceSize))
	if err != nil {
		panic(err)
	}
	return &chachaSource{cipher: c, off: 64}
}

// newEntropySeededSource draws a fresh key from crypto/rand, the system
// entropy source named by spec §4.2.
func newEntropySeededSource() *chachaSource {
	seed := make([]byte, chacha20.KeySize)
	if _, err := io.ReadFull(rand.Reader, seed); err != nil {
		panic("eval: failed to read system entropy: " + err.Error())
	}
	return newChachaSource(seed)
}

func (s *chachaSource) refill() {
	var zero [64]byte
	s.cipher.XORKeyStream(s.buf[:], zero[:])
	s.off = 0
}

func (s *chachaSource) Uint64() uint64 {
	if s.off+8 > len(s.buf) {
		s.refill()
	}
	v := binary.LittleEndian.Uint64(s.buf[s.off:])
	s.off += 8
	return v
}

func (s *chachaSource) Int63() int64 { return int64(s.Uint64() >> 1) }

// Seed is a no-op: reseeding happens by forking a fresh keystream (see
// fork), never by rewinding an existing one, so math/rand.Rand's own
// seeding path is unused.
func (s *chachaSource) Seed(int64) {}

// fork derives an independent keystream for a `go`-spawned Runtime by
// drawing 32 bytes of this source's own keystream as the child's seed,
// matching forThread's "an independently seeded RNG copy" (spec §4.2
// "Scheduling"). Unlike re-reading crypto/rand, this keeps thread
// spawning deterministic given a fixed parent seed, which is what makes
// the construction testable.
func (s *chachaSource) fork() *chachaSource {
	var seed [32]byte
	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint64(seed[i*8:], s.Uint64())
	}
	return newChachaSource(seed[:])
}
