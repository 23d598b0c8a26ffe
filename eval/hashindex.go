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

import "github.com/dchest/siphash"

// currentHash siphashes a `~name` current-object name, grounded on
// vm/interphash.go's use of siphash for fast value/key hashing in the
// teacher repo. The current-object stack (spec §4.2) can grow deep
// across nested current-object-passing calls, so lookupCurrent keeps a
// hash index alongside the plain slice instead of always scanning it
// top-down.
func currentHash(name string) uint64 {
	lo, _ := siphash.Hash128(0, 0, []byte(name))
	return lo
}
