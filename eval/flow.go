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

// flowKind tags a non-local jump signaled by executing a statement or
// block, mirroring the teacher's vm bytecode op outcomes but widened
// from "halt the whole program" to the three jump targets a script
// function body can produce (spec §4.2 "Control flow").
type flowKind uint8

const (
	flowNormal flowKind = iota
	flowReturn
	flowBreak
	flowContinue
)

// Flow reports a non-local jump bubbling up out of statement
// execution. A zero Flow means "ran to completion, keep going".
type Flow struct {
	Kind     flowKind
	Label    string
	HasLabel bool
}

var normalFlow = Flow{}

func returnFlow() Flow { return Flow{Kind: flowReturn} }

func breakFlow(label string, has bool) Flow {
	return Flow{Kind: flowBreak, Label: label, HasLabel: has}
}

func continueFlow(label string, has bool) Flow {
	return Flow{Kind: flowContinue, Label: label, HasLabel: has}
}

func (f Flow) isNormal() bool { return f.Kind == flowNormal }

// matchesLoop reports whether a break/continue with this flow's label
// targets the loop identified by label/hasLabel: an unlabeled jump
// always matches the nearest loop, a labeled jump only matches a loop
// carrying the same label (spec §4.2 "Labeled loops").
func (f Flow) matchesLoop(label string, hasLabel bool) bool {
	if !f.HasLabel {
		return true
	}
	return hasLabel && f.Label == label
}
