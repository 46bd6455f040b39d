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
import "sync"
import "sync/atomic"
import "testing"
import "time"

/* -------------------------------------------------------------------------- */

// countingReader counts real ReadAt invocations and optionally blocks
// until release is closed, so tests can force concurrent Get calls to
// overlap with a single in-flight fill.
type countingReader struct {
  calls   int32
  release chan struct{}
}

func (r *countingReader) ReadAt(ctx context.Context, buf []byte, offset int64) error {
  atomic.AddInt32(&r.calls, 1)
  if r.release != nil {
    select {
    case <-r.release:
    case <-ctx.Done():
      return wrapQueryError(Cancelled, ctx.Err())
    }
  }
  for i := range buf {
    buf[i] = byte(offset) + byte(i)
  }
  return nil
}

func TestReadCacheHitAvoidsSecondRead(t *testing.T) {
  r := &countingReader{}
  c := NewReadCache(r)

  ctx := context.Background()
  if _, err := c.Get(ctx, 0, 16); err != nil {
    t.Fatalf("unexpected error: %v", err)
  }
  if _, err := c.Get(ctx, 0, 16); err != nil {
    t.Fatalf("unexpected error: %v", err)
  }
  if got := atomic.LoadInt32(&r.calls); got != 1 {
    t.Fatalf("expected exactly 1 backing read, got %d", got)
  }
}

func TestReadCacheConcurrentIdenticalFetchShared(t *testing.T) {
  r := &countingReader{release: make(chan struct{})}
  c := NewReadCache(r)
  ctx := context.Background()

  const n = 8
  var wg sync.WaitGroup
  results := make([][]byte, n)
  errs := make([]error, n)
  for i := 0; i < n; i++ {
    wg.Add(1)
    go func(i int) {
      defer wg.Done()
      results[i], errs[i] = c.Get(ctx, 100, 32)
    }(i)
  }

  // give every goroutine a chance to register as a waiter before the
  // single backing read is allowed to complete.
  time.Sleep(20 * time.Millisecond)
  close(r.release)
  wg.Wait()

  if got := atomic.LoadInt32(&r.calls); got != 1 {
    t.Fatalf("expected exactly 1 backing read for %d concurrent identical fetches, got %d", n, got)
  }
  for i := 0; i < n; i++ {
    if errs[i] != nil {
      t.Fatalf("waiter %d: unexpected error: %v", i, errs[i])
    }
    if len(results[i]) != 32 {
      t.Fatalf("waiter %d: expected 32 bytes, got %d", i, len(results[i]))
    }
  }
}

func TestReadCacheCancelOneWaiterDoesNotAbortOthers(t *testing.T) {
  r := &countingReader{release: make(chan struct{})}
  c := NewReadCache(r)

  cancelCtx, cancel := context.WithCancel(context.Background())
  okCtx := context.Background()

  var wg sync.WaitGroup
  var cancelledErr, okErr error
  var okData []byte

  wg.Add(2)
  go func() {
    defer wg.Done()
    _, cancelledErr = c.Get(cancelCtx, 5, 8)
  }()
  go func() {
    defer wg.Done()
    okData, okErr = c.Get(okCtx, 5, 8)
  }()

  time.Sleep(20 * time.Millisecond)
  cancel()
  time.Sleep(20 * time.Millisecond)
  close(r.release)
  wg.Wait()

  if cancelledErr == nil {
    t.Fatalf("expected cancelled waiter to receive an error")
  }
  if okErr != nil {
    t.Fatalf("expected surviving waiter to succeed, got %v", okErr)
  }
  if len(okData) != 8 {
    t.Fatalf("expected 8 bytes for surviving waiter, got %d", len(okData))
  }
}

func TestReadCacheAllWaitersCancelledAbortsFetch(t *testing.T) {
  r := &countingReader{release: make(chan struct{})}
  c := NewReadCache(r)

  cancelCtx, cancel := context.WithCancel(context.Background())
  done := make(chan struct{})
  go func() {
    c.Get(cancelCtx, 7, 4)
    close(done)
  }()

  time.Sleep(20 * time.Millisecond)
  cancel()

  select {
  case <-done:
  case <-time.After(time.Second):
    t.Fatalf("Get did not return after its sole waiter was cancelled")
  }
}
