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

/* -------------------------------------------------------------------------- */

// memByteReader backs ByteReader with an in-memory buffer, for tests
// that build a synthetic bigWig/bigBed fixture by hand rather than
// touching the filesystem.
type memByteReader struct {
  data []byte
}

func (r *memByteReader) ReadAt(ctx context.Context, buf []byte, offset int64) error {
  if err := ctx.Err(); err != nil {
    return wrapQueryError(Cancelled, err)
  }
  end := int(offset) + len(buf)
  if offset < 0 || end > len(r.data) {
    return newQueryError(IoFailure, "memByteReader: read [%d,%d) out of bounds (len=%d)", offset, end, len(r.data))
  }
  copy(buf, r.data[offset:end])
  return nil
}

/* -------------------------------------------------------------------------- */

func newCirLeafNode(order binary.ByteOrder, entries []leafEntry) []byte {
  b := make([]byte, 4+len(entries)*cirLeafEntrySize)
  b[0] = 1
  order.PutUint16(b[2:4], uint16(len(entries)))
  for i, e := range entries {
    o := b[4+i*cirLeafEntrySize:]
    order.PutUint32(o[0:4], e.StartChrom)
    order.PutUint32(o[4:8], e.StartBase)
    order.PutUint32(o[8:12], e.EndChrom)
    order.PutUint32(o[12:16], e.EndBase)
    order.PutUint64(o[16:24], e.BlockOffset)
    order.PutUint64(o[24:32], e.BlockSize)
  }
  return b
}

func newCirInternalNode(order binary.ByteOrder, entries []internalEntry) []byte {
  b := make([]byte, 4+len(entries)*cirInternalEntrySize)
  b[0] = 0
  order.PutUint16(b[2:4], uint16(len(entries)))
  for i, e := range entries {
    o := b[4+i*cirInternalEntrySize:]
    order.PutUint32(o[0:4], e.StartChrom)
    order.PutUint32(o[4:8], e.StartBase)
    order.PutUint32(o[8:12], e.EndChrom)
    order.PutUint32(o[12:16], e.EndBase)
    order.PutUint64(o[16:24], e.ChildOffset)
  }
  return b
}

func newCirHeaderBytes(order binary.ByteOrder, cirBlockSize uint32) []byte {
  b := make([]byte, cirTreeHeaderSize)
  order.PutUint32(b[0:4], cirTreeMagic)
  order.PutUint32(b[4:8], cirBlockSize)
  return b
}
