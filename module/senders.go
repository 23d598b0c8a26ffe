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

package module

import (
	"sync"
	"sync/atomic"

	"github.com/dyonlang/dyon/value"
)

// SenderSet is the registry of `in`-channel receivers open on one loaded
// function. The relaxed atomic flag lets call sites skip the mutex
// entirely in the overwhelmingly common case of "no one is listening",
// per spec §4.2/§9 ("Senders per function").
type SenderSet struct {
	active    int32 // atomic relaxed fast-path flag
	mu        sync.Mutex
	receivers []*value.In
}

// NewSenderSet returns an empty sender registry.
func NewSenderSet() *SenderSet { return &SenderSet{} }

// Register installs r as an observer of subsequent calls.
func (s *SenderSet) Register(r *value.In) {
	s.mu.Lock()
	s.receivers = append(s.receivers, r)
	atomic.StoreInt32(&s.active, 1)
	s.mu.Unlock()
}

// HasReceivers is the cheap relaxed-load fast path used by every call
// site before deciding whether to deep-clone and broadcast its argument
// window.
func (s *SenderSet) HasReceivers() bool { return atomic.LoadInt32(&s.active) != 0 }

// Broadcast delivers a deep-cloned argument-window snapshot (already
// cloned by the caller) to every open receiver.
func (s *SenderSet) Broadcast(argsSnapshot value.Value) {
	s.mu.Lock()
	for _, r := range s.receivers {
		r.Deliver(argsSnapshot)
	}
	s.mu.Unlock()
}
