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

import "context"

import "github.com/pbenner/threadpool"

/* -------------------------------------------------------------------------- */

const indexTraverserThreads = 8
const indexTraverserQueueSize = 100

/* -------------------------------------------------------------------------- */

// IndexTraverser walks a CIR tree round by round, pruning subtrees by
// coordinate overlap and accumulating the leaf data-block descriptors
// that survive. Each round's sibling node offsets are merged into a
// RangeSet and fetched through a ReadCache over a pbenner/threadpool
// job group, a round-based worklist shape that fans I/O out across a
// round instead of fanning CPU work out across a slice.
type IndexTraverser struct {
  cache *ReadCache
  order byteOrder
}

func NewIndexTraverser(cache *ReadCache, order byteOrder) *IndexTraverser {
  return &IndexTraverser{cache: cache, order: order}
}

// roundOutcome is what decoding a single offset within a round
// contributes: either leaf descriptors, or the next round's child
// offsets, never both (a node is either a leaf or internal).
type roundOutcome struct {
  leaves []DataBlockDescriptor
  next   []uint64
}

// Walk traverses the CIR tree rooted at cirTreeOffset+48 and returns
// every leaf data-block descriptor whose entry overlaps req. It fails
// with TraversalIncomplete if some offset
// queued for a round cannot be located inside any of that round's
// fetched ranges (a defensive check: RangeSet construction guarantees
// this never happens, but a future change to that construction should
// trip it rather than silently drop data).
func (t *IndexTraverser) Walk(ctx context.Context, req CoordRequest, cirTreeOffset uint64, cirBlockSize uint32) ([]DataBlockDescriptor, error) {
  maxNode := maxCirNodeSize(cirBlockSize)
  current := []uint64{cirTreeOffset + cirTreeHeaderSize}

  pool := threadpool.New(indexTraverserThreads, indexTraverserQueueSize)

  var descriptors []DataBlockDescriptor

  for len(current) > 0 {
    if err := ctx.Err(); err != nil {
      return nil, wrapQueryError(Cancelled, err)
    }

    rs := Singleton(current[0], current[0]+maxNode)
    for _, o := range current[1:] {
      rs = rs.Union(Singleton(o, o+maxNode))
    }
    ranges := rs.Ranges()

    outcomes := make([]roundOutcome, len(ranges))
    errs := make([]error, len(ranges))
    consumed := make([]bool, len(current))

    g := pool.NewJobGroup()
    for idx, fr := range ranges {
      idx, fr := idx, fr
      pool.AddJob(g, func(pool threadpool.ThreadPool, erf func() error) error {
        length := fr.Max - fr.Min
        buf, err := t.cache.Get(ctx, fr.Min, length)
        if err != nil {
          errs[idx] = err
          return nil
        }

        var leaves []DataBlockDescriptor
        var next []uint64
        for ci, o := range current {
          if o < fr.Min || o > fr.Max {
            continue
          }
          consumed[ci] = true

          node, err := parseCirNode(buf[o-fr.Min:], t.order)
          if err != nil {
            errs[idx] = err
            return nil
          }
          if node.IsLeaf {
            for _, e := range node.Leaf {
              if overlapsLeaf(e, req) {
                leaves = append(leaves, DataBlockDescriptor{Offset: e.BlockOffset, Length: e.BlockSize})
              }
            }
          } else {
            for _, e := range node.Internal {
              if overlapsInternal(e, req) {
                next = append(next, e.ChildOffset)
              }
            }
          }
        }
        outcomes[idx] = roundOutcome{leaves: leaves, next: next}
        return nil
      })
    }
    pool.Wait(g)

    for _, err := range errs {
      if err != nil {
        return nil, err
      }
    }
    for _, ok := range consumed {
      if !ok {
        return nil, ErrTraversalIncomplete
      }
    }

    var next []uint64
    for _, o := range outcomes {
      descriptors = append(descriptors, o.leaves...)
      next = append(next, o.next...)
    }
    current = next
  }

  return descriptors, nil
}
