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
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Tracer records a zstd-compressed line of text for every call-frame
// push and pop, for post-mortem inspection of a long-running program
// without paying the cost of an uncompressed log. It is grounded on
// ion/blockfmt's use of klauspost/compress for its own on-disk streams
// in the teacher repo, applied here to an execution trace instead of a
// column-store segment.
type Tracer struct {
	enc   *zstd.Encoder
	depth int
}

// NewTracer wraps w in a streaming zstd encoder. Close must be called
// to flush the final frame.
func NewTracer(w io.Writer) (*Tracer, error) {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return nil, err
	}
	return &Tracer{enc: enc}, nil
}

// Close flushes and closes the underlying zstd stream.
func (t *Tracer) Close() error { return t.enc.Close() }

func (t *Tracer) enter(fnName string) {
	fmt.Fprintf(t.enc, "%*s-> %s\n", t.depth*2, "", fnName)
	t.depth++
}

func (t *Tracer) exit(fnName string) {
	t.depth--
	fmt.Fprintf(t.enc, "%*s<- %s\n", t.depth*2, "", fnName)
}

// EnableTrace attaches a Tracer to the runtime; subsequent call-frame
// pushes and pops are recorded until the returned Tracer is closed.
func (rt *Runtime) EnableTrace(w io.Writer) (*Tracer, error) {
	t, err := NewTracer(w)
	if err != nil {
		return nil, err
	}
	rt.tracer = t
	return t, nil
}
