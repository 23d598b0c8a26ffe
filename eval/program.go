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

	"github.com/dyonlang/dyon/ast"
	"github.com/dyonlang/dyon/module"
)

// RunMain resolves and invokes the zero-argument function named `main`,
// the sole program entry point (spec §6 "Program entry"). It is the
// one place a host embeds the evaluator without already holding a Call
// node to dispatch, so it synthesizes one against the resolved
// function the same way the rest of the call path expects.
func (rt *Runtime) RunMain() error {
	ref := rt.Mod.FindFunction("main", nil)
	if ref.Kind != module.FnLoaded {
		return fmt.Errorf("eval: no zero-argument function named %q", "main")
	}
	fn := rt.Mod.Fn(ref.Index)
	if len(fn.Args) != 0 {
		return fmt.Errorf("eval: %q must take zero arguments", "main")
	}
	call := &ast.Call{Name: "main"}
	_, flow, err := rt.callLoaded(fn, ref.Index, call)
	if err != nil {
		return err
	}
	if !flow.isNormal() {
		return fmt.Errorf("eval: %q exited via an unresolved non-local jump", "main")
	}
	return nil
}
