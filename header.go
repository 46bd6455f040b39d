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
import "sync"

/* -------------------------------------------------------------------------- */

// Header is everything about a bigWig/bigBed file the query engine
// needs in order to traverse and decode it, independent of how that
// file's own outer header and chromosome list were parsed.
type Header interface {
  CirTreeOffset() uint64
  CirTreeLength() uint64
  CirBlockSize(ctx context.Context) (uint32, error)
  IsBigEndian() bool
  IsCompressed() bool
  BlockType() BlockKind
  RefsByName() map[string]uint32
}

/* -------------------------------------------------------------------------- */

// BbiFile is the concrete Header implementation this repo carries so
// the engine can be exercised against real files. It keeps only the
// read-path knowledge: byte-order auto-detection, the outer header's
// fixed fields, the zoom header list, and the chromosome B-tree. Fields
// only needed to patch offsets back into a file being written
// (PtrCtOffset and friends) are dropped; write support is out of scope.
type BbiFile struct {
  reader     ByteReader
  order      binary.ByteOrder
  bigEndian  bool
  blockKind  BlockKind
  compressed bool

  ctOffset    uint64
  indexOffset uint64
  zoomHeaders []bbiHeaderZoom

  refsByName map[string]uint32

  cirHeaderMu   sync.Mutex
  cirHeaderSet  bool
  cirBlockSize  uint32
  cirTreeLength uint64
}

// OpenBbiFile reads a bigWig/bigBed file's outer header and
// chromosome list through reader, auto-detecting byte order from the
// magic number.
func OpenBbiFile(ctx context.Context, reader ByteReader) (*BbiFile, error) {
  fixedBuf := make([]byte, bbiHeaderFixedSize)
  if err := reader.ReadAt(ctx, fixedBuf, 0); err != nil {
    return nil, err
  }

  order, kind, err := detectByteOrder(fixedBuf)
  if err != nil {
    return nil, err
  }

  fixed, err := parseBbiHeaderFixed(fixedBuf, order)
  if err != nil {
    return nil, err
  }

  zoomHeaders := make([]bbiHeaderZoom, fixed.ZoomLevels)
  if fixed.ZoomLevels > 0 {
    zoomBuf := make([]byte, int(fixed.ZoomLevels)*bbiHeaderZoomSize)
    if err := reader.ReadAt(ctx, zoomBuf, bbiHeaderFixedSize); err != nil {
      return nil, err
    }
    for i := range zoomHeaders {
      zoomHeaders[i] = parseBbiHeaderZoom(zoomBuf[i*bbiHeaderZoomSize:], order)
    }
  }

  refs, err := readChromBTree(ctx, reader, fixed.CtOffset, order)
  if err != nil {
    return nil, err
  }

  f := &BbiFile{
    reader:      reader,
    order:       order,
    bigEndian:   order == binary.BigEndian,
    blockKind:   kind,
    compressed:  fixed.UncompressBufSize != 0,
    ctOffset:    fixed.CtOffset,
    indexOffset: fixed.IndexOffset,
    zoomHeaders: zoomHeaders,
    refsByName:  refs,
  }
  return f, nil
}

func (f *BbiFile) IsBigEndian() bool        { return f.bigEndian }
func (f *BbiFile) IsCompressed() bool       { return f.compressed }
func (f *BbiFile) BlockType() BlockKind     { return f.blockKind }
func (f *BbiFile) RefsByName() map[string]uint32 { return f.refsByName }
func (f *BbiFile) CirTreeOffset() uint64    { return f.indexOffset }

// ByteOrder exposes the detected order as a binary.ByteOrder for
// collaborators (cirtree.go, blockdecoder.go) that want the richer
// stdlib interface rather than the local read-only subset.
func (f *BbiFile) ByteOrder() binary.ByteOrder { return f.order }

// CirTreeLength reports cirTreeHeaderSize (48) once the CIR-tree header
// has been read and its magic validated, and 0 if that read fails; the
// on-disk header records no total tree length. The read is memoized
// behind a mutex shared
// across concurrent first-queries, so they collapse to one fetch, but a
// failed attempt is never cached -- only a successful read sets the
// flag, so a later call can still retry.
func (f *BbiFile) CirTreeLength() uint64 {
  // CirTreeLength's only consumer (QueryEngine's constructor) needs a
  // value immediately and has no context of its own to cancel with;
  // a background context is appropriate here since this read is a
  // one-time, unconditional part of opening the file.
  f.ensureCirHeader(context.Background())
  return f.cirTreeLength
}

// CirBlockSize returns the CIR-tree's declared block size, read and
// memoized the same way as CirTreeLength.
func (f *BbiFile) CirBlockSize(ctx context.Context) (uint32, error) {
  return f.ensureCirHeader(ctx)
}

// ensureCirHeader reads and parses the 48-byte CIR-tree header at most
// once, sharing the result across every caller once it succeeds. A
// failed attempt (including a cancelled ctx) is not memoized, so a
// later call with a usable context can still succeed.
func (f *BbiFile) ensureCirHeader(ctx context.Context) (uint32, error) {
  f.cirHeaderMu.Lock()
  defer f.cirHeaderMu.Unlock()

  if f.cirHeaderSet {
    return f.cirBlockSize, nil
  }

  buf := make([]byte, cirTreeHeaderSize)
  if err := f.reader.ReadAt(ctx, buf, int64(f.indexOffset)); err != nil {
    return 0, err
  }
  hdr, err := parseCirHeader(buf, f.order)
  if err != nil {
    return 0, err
  }

  f.cirBlockSize = hdr.CirBlockSize
  // the on-disk format never records the CIR-tree's total byte
  // length; QueryEngine's constructor only uses CirTreeLength to
  // reject an unreadable/corrupt index, so cirTreeHeaderSize itself
  // -- nonzero only once the 48-byte header has actually been read
  // and its magic validated -- serves that purpose.
  f.cirTreeLength = cirTreeHeaderSize
  f.cirHeaderSet = true
  return f.cirBlockSize, nil
}
