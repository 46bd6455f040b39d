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

/* pure byte-layout parsing of the CIR (R) tree, reading from an
 * in-memory []byte already fetched through ReadCache rather than
 * seeking a live *os.File, and parameterized on binary.ByteOrder
 * rather than a struct-local byte-order field.
 */

const cirTreeHeaderSize = 48
const cirNodeHeaderSize = 4
const cirInternalEntrySize = 24
const cirLeafEntrySize = 32

const cirTreeMagic = 0x2468ace0

/* -------------------------------------------------------------------------- */

// CirHeader is the 48-byte CIR-tree header. The core only consumes
// Magic and CirBlockSize (bytes [4,8)); the remaining bytes are out of
// scope for the query engine.
type CirHeader struct {
  Magic        uint32
  CirBlockSize uint32
}

// parseCirHeader reads the fixed 48-byte CIR-tree header from buf,
// which must hold at least cirTreeHeaderSize bytes starting at the
// tree's root offset.
func parseCirHeader(buf []byte, order byteOrder) (CirHeader, error) {
  if len(buf) < cirTreeHeaderSize {
    return CirHeader{}, newQueryError(ParseFailure, "cir tree header truncated: got %d bytes, want %d", len(buf), cirTreeHeaderSize)
  }
  h := CirHeader{
    Magic:        order.Uint32(buf[0:4]),
    CirBlockSize: order.Uint32(buf[4:8]),
  }
  if h.Magic != cirTreeMagic {
    return CirHeader{}, newQueryError(ParseFailure, "bad cir tree magic: got %x, want %x", h.Magic, cirTreeMagic)
  }
  return h, nil
}

/* -------------------------------------------------------------------------- */

type cirNodeHeader struct {
  IsLeaf   uint8
  Reserved uint8
  Cnt      uint16
}

type internalEntry struct {
  StartChrom, StartBase, EndChrom, EndBase uint32
  ChildOffset                              uint64
}

type leafEntry struct {
  StartChrom, StartBase, EndChrom, EndBase uint32
  BlockOffset, BlockSize                   uint64
}

// cirNode is a single decoded CIR-tree node: either cnt internal
// entries (IsLeaf == 0) or cnt leaf entries (IsLeaf == 1), never both.
type cirNode struct {
  IsLeaf   bool
  Internal []internalEntry
  Leaf     []leafEntry
}

// maxCirNodeSize is an upper bound on the encoded size of any node
// built with the given block size: a full leaf node has cirBlockSize
// entries of the largest entry size, 32 bytes.
func maxCirNodeSize(cirBlockSize uint32) uint64 {
  return cirNodeHeaderSize + uint64(cirBlockSize)*cirLeafEntrySize
}

// parseCirNode decodes a single CIR node from buf, which must start
// exactly at the node's offset and contain at least its full encoded
// length (callers slice a larger fetched buffer down to this).
func parseCirNode(buf []byte, order byteOrder) (cirNode, error) {
  if len(buf) < cirNodeHeaderSize {
    return cirNode{}, newQueryError(ParseFailure, "cir node header truncated: got %d bytes, want %d", len(buf), cirNodeHeaderSize)
  }
  hdr := cirNodeHeader{
    IsLeaf:   buf[0],
    Reserved: buf[1],
    Cnt:      order.Uint16(buf[2:4]),
  }

  rest := buf[cirNodeHeaderSize:]

  if hdr.IsLeaf != 0 {
    entries := make([]leafEntry, hdr.Cnt)
    need := int(hdr.Cnt) * cirLeafEntrySize
    if len(rest) < need {
      return cirNode{}, newQueryError(ParseFailure, "cir leaf node truncated: got %d bytes, want %d", len(rest), need)
    }
    for i := range entries {
      b := rest[i*cirLeafEntrySize:]
      entries[i] = leafEntry{
        StartChrom:  order.Uint32(b[0:4]),
        StartBase:   order.Uint32(b[4:8]),
        EndChrom:    order.Uint32(b[8:12]),
        EndBase:     order.Uint32(b[12:16]),
        BlockOffset: order.Uint64(b[16:24]),
        BlockSize:   order.Uint64(b[24:32]),
      }
    }
    return cirNode{IsLeaf: true, Leaf: entries}, nil
  }

  entries := make([]internalEntry, hdr.Cnt)
  need := int(hdr.Cnt) * cirInternalEntrySize
  if len(rest) < need {
    return cirNode{}, newQueryError(ParseFailure, "cir internal node truncated: got %d bytes, want %d", len(rest), need)
  }
  for i := range entries {
    b := rest[i*cirInternalEntrySize:]
    entries[i] = internalEntry{
      StartChrom:   order.Uint32(b[0:4]),
      StartBase:    order.Uint32(b[4:8]),
      EndChrom:     order.Uint32(b[8:12]),
      EndBase:      order.Uint32(b[12:16]),
      ChildOffset:  order.Uint64(b[16:24]),
    }
  }
  return cirNode{IsLeaf: false, Internal: entries}, nil
}

/* -------------------------------------------------------------------------- */

// CoordRequest is a half-open-by-convention (see overlapsLeaf) genomic
// interval query: chromosome id plus start/end base coordinates.
type CoordRequest struct {
  ChromId uint32
  Start   int32
  End     int32
}

// overlapsInternal and overlapsLeaf are the CIR-tree pruning
// predicate, one per entry kind: it accepts any entry
// whose genomic interval, interpreted over the ordered (chromId, base)
// space, touches [req.Start, req.End] on
// req.ChromId.
func overlapsInternal(e internalEntry, req CoordRequest) bool {
  lowOk := e.StartChrom < req.ChromId || (e.StartChrom == req.ChromId && int64(e.StartBase) <= int64(req.End))
  highOk := e.EndChrom > req.ChromId || (e.EndChrom == req.ChromId && int64(e.EndBase) >= int64(req.Start))
  return lowOk && highOk
}

func overlapsLeaf(e leafEntry, req CoordRequest) bool {
  lowOk := e.StartChrom < req.ChromId || (e.StartChrom == req.ChromId && int64(e.StartBase) <= int64(req.End))
  highOk := e.EndChrom > req.ChromId || (e.EndChrom == req.ChromId && int64(e.EndBase) >= int64(req.Start))
  return lowOk && highOk
}

/* -------------------------------------------------------------------------- */

// byteOrder is the subset of binary.ByteOrder the CIR-tree parser
// needs, named locally so cirtree.go and blockdecoder.go don't have to
// import encoding/binary just to reference the interface type.
type byteOrder interface {
  Uint16([]byte) uint16
  Uint32([]byte) uint32
  Uint64([]byte) uint64
}
