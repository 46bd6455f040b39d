/* Copyright (C) 2016 Philipp Benner
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package bigwig

/* -------------------------------------------------------------------------- */

import "sort"

/* -------------------------------------------------------------------------- */

// blockCoalesceGap is the maximum byte gap between two data blocks that
// still makes it worthwhile to fetch them as a single backing read
// rather than two separate ones. Fixed policy, not configurable: it
// amortizes per-request overhead (HTTP range requests, filesystem
// seeks) against the wasted bytes of the gap.
const blockCoalesceGap = 2048

/* -------------------------------------------------------------------------- */

// DataBlockDescriptor identifies a single compressed data block inside
// a bigWig/bigBed file, as discovered by a leaf entry of the CIR tree.
type DataBlockDescriptor struct {
  Offset, Length uint64
}

// BlockGroup is a contiguous byte range, fetched as one backing read,
// covering one or more DataBlockDescriptors.
type BlockGroup struct {
  Offset, Length uint64
  Blocks         []DataBlockDescriptor
}

/* -------------------------------------------------------------------------- */

// BlockCoalescer merges a set of data block descriptors into the
// smallest number of contiguous fetch ranges, so that C3/C2 issue one
// backing read per group instead of one per block.
type BlockCoalescer struct{}

func NewBlockCoalescer() *BlockCoalescer {
  return &BlockCoalescer{}
}

// Group sorts blocks ascending by offset and merges any two
// consecutive blocks separated by at most blockCoalesceGap bytes into
// a single BlockGroup.
func (*BlockCoalescer) Group(blocks []DataBlockDescriptor) []BlockGroup {
  if len(blocks) == 0 {
    return nil
  }

  sorted := make([]DataBlockDescriptor, len(blocks))
  copy(sorted, blocks)
  sort.Slice(sorted, func(i, j int) bool {
    return sorted[i].Offset < sorted[j].Offset
  })

  groups := make([]BlockGroup, 0, len(sorted))
  current := BlockGroup{
    Offset: sorted[0].Offset,
    Length: sorted[0].Length,
    Blocks: []DataBlockDescriptor{sorted[0]},
  }

  for _, next := range sorted[1:] {
    gap := next.Offset - (current.Offset + current.Length)
    if gap <= blockCoalesceGap {
      current.Length = next.Offset + next.Length - current.Offset
      current.Blocks = append(current.Blocks, next)
      continue
    }
    groups = append(groups, current)
    current = BlockGroup{
      Offset: next.Offset,
      Length: next.Length,
      Blocks: []DataBlockDescriptor{next},
    }
  }
  groups = append(groups, current)

  return groups
}
