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
import "encoding/binary"
import "errors"
import "sync"

import "github.com/pbenner/threadpool"

/* -------------------------------------------------------------------------- */

const queryEngineThreads = 8
const queryEngineQueueSize = 100

/* -------------------------------------------------------------------------- */

// Observer receives the streamed result of a single ReadWigData call.
// At most one of Complete/Error is ever called, and it is always the
// last call made.
type Observer interface {
  Next(features []Feature)
  Complete()
  Error(err error)
}

/* -------------------------------------------------------------------------- */

// QueryEngine is the public entrypoint: it drives IndexTraverser,
// BlockCoalescer, and BlockDecoder in sequence to answer a single
// region query, streaming results to an Observer.
type QueryEngine struct {
  header    Header
  cache     *ReadCache
  traverser *IndexTraverser
  coalescer *BlockCoalescer
  decoder   *BlockDecoder
}

// NewQueryEngine builds a QueryEngine over an already-opened header and
// its backing reader. It rejects a header whose CirTreeLength is zero
// immediately; CirTreeOffset is unsigned here, so any other malformed
// offset instead surfaces later as an IoFailure or ParseFailure from
// the first read against it.
func NewQueryEngine(header Header, reader ByteReader) (*QueryEngine, error) {
  if header.CirTreeLength() == 0 {
    return nil, wrapQueryError(InvalidArgument, errors.New("header reports a zero-length CIR tree"))
  }
  order := binary.ByteOrder(binary.LittleEndian)
  if header.IsBigEndian() {
    order = binary.BigEndian
  }
  cache := NewReadCache(reader)
  return &QueryEngine{
    header:    header,
    cache:     cache,
    traverser: NewIndexTraverser(cache, order),
    coalescer: NewBlockCoalescer(),
    decoder:   NewBlockDecoder(),
  }, nil
}

/* -------------------------------------------------------------------------- */

// ReadWigData answers a single region query against refName, streaming
// matching features to obs. An unknown refName is not an error:
// obs.Complete() is called immediately with no features. A cancelled
// ctx suppresses every observer callback.
func (e *QueryEngine) ReadWigData(ctx context.Context, refName string, start, end int32, obs Observer) {
  chromId, ok := e.header.RefsByName()[refName]
  if !ok {
    obs.Complete()
    return
  }

  cirBlockSize, err := e.header.CirBlockSize(ctx)
  if err != nil {
    if errors.Is(err, ErrCancelled) || ctx.Err() != nil {
      return
    }
    obs.Error(err)
    return
  }

  req := CoordRequest{ChromId: chromId, Start: start, End: end}

  descriptors, err := e.traverser.Walk(ctx, req, e.header.CirTreeOffset(), cirBlockSize)
  if err != nil {
    if errors.Is(err, ErrCancelled) {
      return
    }
    obs.Error(err)
    return
  }

  groups := e.coalescer.Group(descriptors)
  if len(groups) == 0 {
    obs.Complete()
    return
  }

  var order byteOrder = binary.LittleEndian
  if e.header.IsBigEndian() {
    order = binary.BigEndian
  }

  pool := threadpool.New(queryEngineThreads, queryEngineQueueSize)
  g := pool.NewJobGroup()

  errs := make([]error, len(groups))
  var mu sync.Mutex

  for idx, group := range groups {
    idx, group := idx, group
    pool.AddJob(g, func(pool threadpool.ThreadPool, erf func() error) error {
      data, err := e.cache.Get(ctx, group.Offset, group.Length)
      if err != nil {
        errs[idx] = err
        return nil
      }
      for _, block := range group.Blocks {
        off := block.Offset - group.Offset
        if off+block.Length > uint64(len(data)) {
          errs[idx] = newQueryError(ParseFailure, "block [%d,%d) out of bounds of fetched group of length %d", off, off+block.Length, len(data))
          return nil
        }
        features, err := e.decoder.Decode(data[off:off+block.Length], e.header.BlockType(), order, e.header.IsCompressed(), req, block.Offset)
        if err != nil {
          errs[idx] = err
          return nil
        }
        mu.Lock()
        if ctx.Err() != nil {
          mu.Unlock()
          return nil
        }
        obs.Next(features)
        mu.Unlock()
      }
      return nil
    })
  }
  pool.Wait(g)

  if err := ctx.Err(); err != nil {
    return
  }
  for _, err := range errs {
    if err != nil {
      obs.Error(err)
      return
    }
  }
  obs.Complete()
}
