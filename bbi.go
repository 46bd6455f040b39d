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

// Byte-layout knowledge for the bigWig/bigBed outer header and
// chromosome B-tree. Only the read path is implemented; writing a
// header or B-tree back out is out of scope.

/* -------------------------------------------------------------------------- */

import "context"
import "encoding/binary"

/* -------------------------------------------------------------------------- */

// chromBTreeMagic is the magic number of the chromosome-name B-tree.
// It is unrelated to the CIR/R-tree data index's own magic number,
// cirTreeMagic in cirtree.go, despite the superficially similar name
// this format's tooling sometimes gives both constants.
const chromBTreeMagic = 0x78ca8c91

const bigWigMagic = 0x888FFC26
const bigBedMagic = 0x8789F2EB

const bbiHeaderFixedSize = 64
const bbiHeaderZoomSize = 24
const chromBTreeHeaderSize = 32

/* -------------------------------------------------------------------------- */

// detectByteOrder reads the first 4 bytes of buf as both little- and
// big-endian and returns whichever interpretation matches one of the
// known outer-file magic numbers, plus which file kind it identified.
// bigWig/bigBed files produced on a big-endian host are legal, so the
// order can never be assumed and must be detected per file.
func detectByteOrder(buf []byte) (binary.ByteOrder, BlockKind, error) {
  if len(buf) < 4 {
    return nil, 0, newQueryError(ParseFailure, "header truncated: need at least 4 bytes to detect byte order")
  }
  le := binary.LittleEndian.Uint32(buf[0:4])
  be := binary.BigEndian.Uint32(buf[0:4])

  switch {
  case le == bigWigMagic:
    return binary.LittleEndian, BlockKindBigWig, nil
  case be == bigWigMagic:
    return binary.BigEndian, BlockKindBigWig, nil
  case le == bigBedMagic:
    return binary.LittleEndian, BlockKindBigBed, nil
  case be == bigBedMagic:
    return binary.BigEndian, BlockKindBigBed, nil
  default:
    return nil, 0, newQueryError(ParseFailure, "unrecognized bigWig/bigBed magic: %#x / %#x", le, be)
  }
}

/* -------------------------------------------------------------------------- */

// bbiHeaderFixed is the outer header's fixed-size prefix, preceding
// its variable-length zoom header list.
type bbiHeaderFixed struct {
  Magic             uint32
  Version           uint16
  ZoomLevels        uint16
  CtOffset          uint64
  DataOffset        uint64
  IndexOffset       uint64
  FieldCount        uint16
  DefinedFieldCount uint16
  SqlOffset         uint64
  SummaryOffset     uint64
  UncompressBufSize uint32
  ExtensionOffset   uint64
}

func parseBbiHeaderFixed(buf []byte, order byteOrder) (bbiHeaderFixed, error) {
  if len(buf) < bbiHeaderFixedSize {
    return bbiHeaderFixed{}, newQueryError(ParseFailure, "bbi header truncated: got %d bytes, want %d", len(buf), bbiHeaderFixedSize)
  }
  return bbiHeaderFixed{
    Magic:             order.Uint32(buf[0:4]),
    Version:           order.Uint16(buf[4:6]),
    ZoomLevels:        order.Uint16(buf[6:8]),
    CtOffset:          order.Uint64(buf[8:16]),
    DataOffset:        order.Uint64(buf[16:24]),
    IndexOffset:       order.Uint64(buf[24:32]),
    FieldCount:        order.Uint16(buf[32:34]),
    DefinedFieldCount: order.Uint16(buf[34:36]),
    SqlOffset:         order.Uint64(buf[36:44]),
    SummaryOffset:     order.Uint64(buf[44:52]),
    UncompressBufSize: order.Uint32(buf[52:56]),
    ExtensionOffset:   order.Uint64(buf[56:64]),
  }, nil
}

// bbiHeaderZoom is one of the outer header's zoom/reduction level
// descriptors.
type bbiHeaderZoom struct {
  ReductionLevel uint32
  Reserved       uint32
  DataOffset     uint64
  IndexOffset    uint64
}

func parseBbiHeaderZoom(buf []byte, order byteOrder) bbiHeaderZoom {
  return bbiHeaderZoom{
    ReductionLevel: order.Uint32(buf[0:4]),
    Reserved:       order.Uint32(buf[4:8]),
    DataOffset:     order.Uint64(buf[8:16]),
    IndexOffset:    order.Uint64(buf[16:24]),
  }
}

/* -------------------------------------------------------------------------- */

// readChromBTree reads the chromosome-name B-tree rooted at offset
// and returns a refName -> chromId map. Unlike the CIR/R-tree, this
// tree is read eagerly and recursively through plain ByteReader.ReadAt
// calls rather than a round-based worklist: it is always small (one
// entry per reference sequence in the assembly) and sits outside the
// engine's hot query path.
func readChromBTree(ctx context.Context, reader ByteReader, offset uint64, order byteOrder) (map[string]uint32, error) {
  hdr := make([]byte, chromBTreeHeaderSize)
  if err := reader.ReadAt(ctx, hdr, int64(offset)); err != nil {
    return nil, err
  }
  magic := order.Uint32(hdr[0:4])
  if magic != chromBTreeMagic {
    return nil, newQueryError(ParseFailure, "bad chromosome b-tree magic: got %x, want %x", magic, chromBTreeMagic)
  }
  keySize := order.Uint32(hdr[8:12])
  valSize := order.Uint32(hdr[12:16])

  refs := make(map[string]uint32)
  if err := readChromBVertex(ctx, reader, offset+chromBTreeHeaderSize, keySize, valSize, order, refs); err != nil {
    return nil, err
  }
  return refs, nil
}

func readChromBVertex(ctx context.Context, reader ByteReader, offset uint64, keySize, valSize uint32, order byteOrder, refs map[string]uint32) error {
  if err := ctx.Err(); err != nil {
    return wrapQueryError(Cancelled, err)
  }

  head := make([]byte, 4)
  if err := reader.ReadAt(ctx, head, int64(offset)); err != nil {
    return err
  }
  isLeaf := head[0]
  cnt := order.Uint16(head[2:4])
  offset += 4

  entrySize := uint64(keySize) + uint64(valSize)
  if isLeaf == 0 {
    entrySize = uint64(keySize) + 8 // key + child offset
  }

  entries := make([]byte, uint64(cnt)*entrySize)
  if err := reader.ReadAt(ctx, entries, int64(offset)); err != nil {
    return err
  }

  for i := uint16(0); i < cnt; i++ {
    e := entries[uint64(i)*entrySize:]
    key := e[0:keySize]

    if isLeaf != 0 {
      val := e[keySize : keySize+valSize]
      // the chromosome value record is { chromId u32, chromSize u32 };
      // the core only needs the id half.
      chromId := order.Uint32(val[0:4])
      refs[trimNulBytes(key)] = chromId
    } else {
      childOffset := order.Uint64(e[keySize : keySize+8])
      if err := readChromBVertex(ctx, reader, childOffset, keySize, valSize, order, refs); err != nil {
        return err
      }
    }
  }
  return nil
}

// trimNulBytes strips the trailing NUL padding chromosome-name keys
// are stored with (fixed-width keySize, shorter names zero-padded).
func trimNulBytes(b []byte) string {
  end := len(b)
  for end > 0 && b[end-1] == 0 {
    end--
  }
  return string(b[:end])
}
