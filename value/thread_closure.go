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

package value

import (
	"sync"

	"github.com/google/uuid"
)

// Closure is a captured function literal. Module and AST are stored as
// `any` (rather than *module.Module / *ast.Closure) so that this leaf
// package never imports module or ast; the eval package, which already
// depends on all three, performs the type assertion. This mirrors the
// way expr/node.go keeps Node free of any dependency on the vm package
// that will eventually execute it.
type Closure struct {
	// Module is the defining module snapshot (*module.Module),
	// captured so find_function semantics still work if the closure
	// runs later in a different call context, including inside a
	// spawned thread (spec §4.2, §9).
	Module any
	// RelIndex is the index within Module of the function that defined
	// the closure. Calling the closure records it as the frame's function
	// index, so relative offsets cached at Call sites in the body resolve
	// against it.
	RelIndex int
	// AST is the closure body (*ast.Closure), with any `grab` nodes
	// already resolved to Const splices at construction time.
	AST any
	// Captured holds the `~name` current-object values snapshotted at
	// closure-construction time.
	Captured map[string]Value
}

// Thread is a one-shot handle to a spawned OS thread. Joining moves the
// handle out of the value (spec §3.1 invariant). ID stamps each spawn
// with a UUID the same way cmd/snellerd/handler_query.go stamps each
// query for tracing, so a failed join can name which `go`-spawned
// thread died (spec §7 "Thread errors").
type Thread struct {
	ID uuid.UUID

	mu     sync.Mutex
	joined bool
	done   chan struct{}
	result Value
	err    *Error
}

// NewThread creates a handle for a goroutine that will report its
// result via Resolve.
func NewThread() *Thread {
	return &Thread{ID: uuid.New(), done: make(chan struct{})}
}

// Resolve is called exactly once by the spawned goroutine to deliver its
// outcome.
func (t *Thread) Resolve(v Value, err *Error) {
	t.result = v
	t.err = err
	close(t.done)
}

// Join blocks until the thread terminates, returning Result<value,
// error>. It requires unique ownership of the handle: a second Join
// call returns an error, matching the "moves the handle out" invariant.
func (t *Thread) Join() (Value, error) {
	t.mu.Lock()
	if t.joined {
		t.mu.Unlock()
		return Value{}, &Error{Msg: "thread has already been joined"}
	}
	t.joined = true
	t.mu.Unlock()
	<-t.done
	if t.err != nil {
		return Value{}, t.err
	}
	return t.result, nil
}

// In is a shared, mutex-guarded receive endpoint fed by an `in`-channel
// registered on a loaded function (spec §4.2 "Channels").
type In struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []Value
}

// NewIn returns a fresh, empty receiver.
func NewIn() *In {
	r := &In{}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Deliver appends a broadcast argument-array snapshot; called by the
// sending call site under the function's senders lock.
func (r *In) Deliver(v Value) {
	r.mu.Lock()
	r.pending = append(r.pending, v)
	r.cond.Broadcast()
	r.mu.Unlock()
}

// Next is the non-blocking `next(in)` primitive: returns the oldest
// pending value, or None if the queue is empty.
func (r *In) Next() Value {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pending) == 0 {
		return None()
	}
	v := r.pending[0]
	r.pending = r.pending[1:]
	return Some(v)
}

// WaitNext is the blocking `wait_next(in)` primitive: a genuine
// suspension point (spec §4.2), implemented with a condition variable
// rather than a busy-poll loop.
func (r *In) WaitNext() Value {
	r.mu.Lock()
	defer r.mu.Unlock()
	for len(r.pending) == 0 {
		r.cond.Wait()
	}
	v := r.pending[0]
	r.pending = r.pending[1:]
	return Some(v)
}
