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

// Command dyonrun is a thin embedding harness: it registers a sample
// `main` program against a fresh module, runs it through the lifetime
// checker and then the evaluator, and optionally reports build/runtime
// diagnostics. Parsing Dyon source text is out of scope (spec §1); real
// embedders build the ast.Fn tree themselves the way this command does,
// or plug in their own front end ahead of lifetime.Check.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"golang.org/x/sys/cpu"

	"github.com/dyonlang/dyon/ast"
	"github.com/dyonlang/dyon/eval"
	"github.com/dyonlang/dyon/lifetime"
	"github.com/dyonlang/dyon/module"
	"github.com/dyonlang/dyon/write"
)

var (
	printStats bool
	printHost  bool
	dumpSource bool
)

func init() {
	flag.BoolVar(&printStats, "S", false, "print execution statistics on stderr")
	flag.BoolVar(&printHost, "host", false, "print host CPU feature diagnostics on stderr")
	flag.BoolVar(&dumpSource, "dump", false, "print the canonical source of the sample program instead of running it")
}

type execStatistics struct {
	mallocs   uint64
	bytes     int64
	startTime time.Time
	elapsed   time.Duration
}

func (e *execStatistics) start() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	e.mallocs = m.Mallocs
	e.bytes = int64(m.TotalAlloc)
	e.startTime = time.Now()
}

func (e *execStatistics) stop() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	e.mallocs = m.Mallocs - e.mallocs
	e.bytes = int64(m.TotalAlloc) - e.bytes
	e.elapsed = time.Since(e.startTime)
}

func (e *execStatistics) print() {
	fmt.Fprintf(os.Stderr, "elapsed %v, allocated %d bytes, %d allocations\n", e.elapsed, e.bytes, e.mallocs)
}

func printHostInfo() {
	fmt.Fprintf(os.Stderr, "GOARCH=%s GOOS=%s\n", runtime.GOARCH, runtime.GOOS)
	if runtime.GOARCH == "amd64" {
		fmt.Fprintf(os.Stderr, "AVX2=%v AVX512=%v\n", cpu.X86.HasAVX2, cpu.X86.HasAVX512F)
	}
}

// sampleProgram builds end-to-end scenario 4 from spec §6 (a reduction
// over a for-n range) as a literal ast.Fn tree, standing in for what a
// real front end would hand to lifetime.Check: `fn main() { s := sum i
// [0, 10) { i }; print(s) }`.
func sampleProgram() *ast.Fn {
	return &ast.Fn{
		Name: "main",
		Body: &ast.Block{Stmts: []ast.Node{
			&ast.Assign{
				Op:   ast.AssignDecl,
				Left: &ast.Item{Name: "s"},
				Right: &ast.Reduce{
					Kind:  ast.ReduceSum,
					Name:  "i",
					Start: &ast.F64Lit{Value: 0},
					End:   &ast.F64Lit{Value: 10},
					Body:  &ast.Block{Stmts: []ast.Node{&ast.Item{Name: "i"}}},
				},
			},
			&ast.Call{Name: "print", Args: []ast.CallArg{{Value: &ast.Item{Name: "s"}}}},
		}},
	}
}

func main() {
	flag.Parse()

	if printHost {
		printHostInfo()
	}

	fn := sampleProgram()

	if dumpSource {
		fmt.Println(write.Fn(fn))
		return
	}

	mod := module.New()
	module.LoadPrelude(mod)
	mod.AddFn(fn)

	if err := lifetime.Check([]*ast.Fn{fn}, mod); err != nil {
		fmt.Fprintln(os.Stderr, "lifetime check failed:", err)
		os.Exit(1)
	}

	var stats execStatistics
	stats.start()

	rt := eval.New(mod)
	if err := rt.RunMain(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	stats.stop()
	if printStats {
		stats.print()
	}
}
