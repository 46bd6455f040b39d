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
import "log"
import "sync"
import "time"

import "github.com/cespare/xxhash/v2"
import lru "github.com/hashicorp/golang-lru/v2"

/* -------------------------------------------------------------------------- */

const readCacheMaxEntries = 1000

// cacheKey identifies a cached byte range by its exact (length, offset)
// pair. Using the pair itself as the map key (rather than a hash of it)
// means a hash collision can never corrupt a lookup; xxhash is used
// below only to derive a short, stable id for debug tracing.
type cacheKey struct {
  length uint64
  offset uint64
}

func (k cacheKey) traceID() uint64 {
  var buf [16]byte
  binary.LittleEndian.PutUint64(buf[0:8], k.length)
  binary.LittleEndian.PutUint64(buf[8:16], k.offset)
  return xxhash.Sum64(buf[:])
}

/* -------------------------------------------------------------------------- */

// pendingFill tracks a single in-flight backing read shared by every
// waiter that asked for the same (offset, length) range concurrently.
type pendingFill struct {
  ctx     context.Context
  cancel  context.CancelFunc
  waiters int
  done    chan struct{}
  data    []byte
  err     error
}

// ReadCache is a bounded LRU over raw byte ranges fetched through a
// ByteReader. At most one backing read is in flight per
// key at a time; concurrent Get calls for the same range share that
// read. Cancelling one waiter's context only cancels the shared fetch
// once every waiter sharing it has cancelled.
type ReadCache struct {
  reader ByteReader
  lru    *lru.Cache[cacheKey, []byte]
  Debug  bool

  mu      sync.Mutex
  pending map[cacheKey]*pendingFill
}

func NewReadCache(reader ByteReader) *ReadCache {
  cache, err := lru.New[cacheKey, []byte](readCacheMaxEntries)
  if err != nil {
    // only returns an error for a non-positive size, which
    // readCacheMaxEntries never is.
    panic(err)
  }
  return &ReadCache{
    reader:  reader,
    lru:     cache,
    pending: make(map[cacheKey]*pendingFill),
  }
}

// Get returns the length bytes starting at offset, resident in the LRU
// on return. Concurrent Get calls with the same (offset, length) block
// on, and share the result of, a single underlying ByteReader.ReadAt.
func (c *ReadCache) Get(ctx context.Context, offset, length uint64) ([]byte, error) {
  key := cacheKey{length: length, offset: offset}

  c.mu.Lock()
  if data, ok := c.lru.Get(key); ok {
    c.mu.Unlock()
    if c.Debug {
      log.Printf("readcache: hit key=%x offset=%d length=%d", key.traceID(), offset, length)
    }
    return data, nil
  }
  if pf, ok := c.pending[key]; ok {
    pf.waiters++
    c.mu.Unlock()
    return c.awaitFill(ctx, key, pf)
  }

  fillCtx, cancel := context.WithCancel(detachCancel(ctx))
  pf := &pendingFill{
    ctx:     fillCtx,
    cancel:  cancel,
    waiters: 1,
    done:    make(chan struct{}),
  }
  c.pending[key] = pf
  c.mu.Unlock()

  if c.Debug {
    log.Printf("readcache: miss key=%x offset=%d length=%d", key.traceID(), offset, length)
  }

  go c.fill(key, pf, offset, length)

  return c.awaitFill(ctx, key, pf)
}

// fill performs the single backing read for a pendingFill and publishes
// the result to every current and future waiter.
func (c *ReadCache) fill(key cacheKey, pf *pendingFill, offset, length uint64) {
  buf := make([]byte, length)
  err := c.reader.ReadAt(pf.ctx, buf, int64(offset))

  c.mu.Lock()
  delete(c.pending, key)
  if err == nil {
    c.lru.Add(key, buf)
    pf.data = buf
  } else {
    pf.err = err
  }
  c.mu.Unlock()

  close(pf.done)
}

// awaitFill waits for pf to complete, or for ctx to be cancelled. On
// cancellation it decrements the waiter count and, if this was the
// last waiter, cancels the shared fetch.
func (c *ReadCache) awaitFill(ctx context.Context, key cacheKey, pf *pendingFill) ([]byte, error) {
  select {
  case <-pf.done:
    return pf.data, pf.err
  case <-ctx.Done():
    c.mu.Lock()
    pf.waiters--
    last := pf.waiters == 0
    c.mu.Unlock()
    if last {
      pf.cancel()
    }
    return nil, wrapQueryError(Cancelled, ctx.Err())
  }
}

// detachCancel returns a context carrying ctx's values but not its
// cancellation or deadline, so that the shared fill's lifetime is
// governed only by the explicit ref-counting in awaitFill, never by
// whichever waiter happens to have started the fetch cancelling its
// own, unrelated context.
func detachCancel(ctx context.Context) context.Context {
  return detachedContext{ctx}
}

type detachedContext struct {
  context.Context
}

func (detachedContext) Deadline() (time.Time, bool) {
  return time.Time{}, false
}

func (detachedContext) Done() <-chan struct{} {
  return nil
}

func (detachedContext) Err() error {
  return nil
}
