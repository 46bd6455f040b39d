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

import "bytes"
import "fmt"
import "io"
import "log"
import "math"

import "github.com/klauspost/compress/zlib"

/* -------------------------------------------------------------------------- */

// BlockKind identifies the on-disk shape of a data block, supplied by
// the Header collaborator.
type BlockKind int

const (
  BlockKindSummary BlockKind = iota
  BlockKindBigWig
  BlockKindBigBed
)

// bigWig block-type byte, inside the 24-byte block header. Writers
// commonly only ever emit blockTypeVStep/blockTypeFStep; this reader
// additionally recognizes blockTypeGraph.
const (
  blockTypeGraph uint8 = 1
  blockTypeVStep uint8 = 2
  blockTypeFStep uint8 = 3
)

const summaryRecordSize = 32
const bigWigBlockHeaderSize = 24

/* -------------------------------------------------------------------------- */

// Feature is the uniform output type streamed to an Observer.
type Feature struct {
  Start, End         int32
  Score              float32
  MinScore, MaxScore float32
  HasMinMax          bool
  Summary            bool
  Rest               []byte
  UniqueId           string
}

// SummaryRecord is a single 32-byte zoom/summary record.
type SummaryRecord struct {
  ChromId            uint32
  Start, End         uint32
  ValidCount         uint32
  MinScore, MaxScore float32
  SumData, SumSqData float32
}

/* -------------------------------------------------------------------------- */

// BlockDecoder turns one fetched data block (inflating it first when
// the file is compressed) into Features, dispatching on BlockKind.
type BlockDecoder struct{}

func NewBlockDecoder() *BlockDecoder {
  return &BlockDecoder{}
}

// Decode inflates buf if compressed is set, then decodes it according
// to kind, returning only the features passing coordFilter against req.
// startOffset is the block's absolute file offset; decodeBigBedBlock
// needs it to build a UniqueId that stays unique across the blocks of
// a grouped fetch, since an intra-block offset alone collides whenever
// two blocks happen to share a size.
func (d *BlockDecoder) Decode(buf []byte, kind BlockKind, order byteOrder, compressed bool, req CoordRequest, startOffset uint64) ([]Feature, error) {
  if compressed {
    inflated, err := inflate(buf)
    if err != nil {
      return nil, err
    }
    buf = inflated
  }

  switch kind {
  case BlockKindSummary:
    return decodeSummaryBlock(buf, order, req)
  case BlockKindBigBed:
    return decodeBigBedBlock(buf, order, req, startOffset)
  case BlockKindBigWig:
    return decodeBigWigBlock(buf, order, req)
  default:
    return nil, newQueryError(ParseFailure, "unknown block kind %d", kind)
  }
}

// inflate decompresses a single deflate stream, adopting
// klauspost/compress/zlib as a drop-in for compress/zlib (grounded on
// arloliu/mebo's dependency stack); only the reader direction is used,
// since write support is out of scope.
func inflate(buf []byte) ([]byte, error) {
  r, err := zlib.NewReader(bytes.NewReader(buf))
  if err != nil {
    return nil, wrapQueryError(DecompressionFailure, err)
  }
  defer r.Close()

  out, err := io.ReadAll(r)
  if err != nil {
    return nil, wrapQueryError(DecompressionFailure, err)
  }
  return out, nil
}

/* -------------------------------------------------------------------------- */

// coordFilter is the final per-feature acceptance test: the feature's
// interval must overlap [req.Start, req.End).
func coordFilter(f Feature, req CoordRequest) bool {
  return f.Start < req.End && f.End >= req.Start
}

/* -------------------------------------------------------------------------- */

// decodeSummaryBlock parses 32-byte zoom/summary records until the end
// of buf, filtering by chromId and coordFilter.
func decodeSummaryBlock(buf []byte, order byteOrder, req CoordRequest) ([]Feature, error) {
  if len(buf)%summaryRecordSize != 0 {
    return nil, newQueryError(ParseFailure, "summary block length %d is not a multiple of %d", len(buf), summaryRecordSize)
  }

  var features []Feature
  for off := 0; off < len(buf); off += summaryRecordSize {
    b := buf[off:]
    rec := SummaryRecord{
      ChromId:    order.Uint32(b[0:4]),
      Start:      order.Uint32(b[4:8]),
      End:        order.Uint32(b[8:12]),
      ValidCount: order.Uint32(b[12:16]),
      MinScore:   math.Float32frombits(order.Uint32(b[16:20])),
      MaxScore:   math.Float32frombits(order.Uint32(b[20:24])),
      SumData:    math.Float32frombits(order.Uint32(b[24:28])),
      SumSqData:  math.Float32frombits(order.Uint32(b[28:32])),
    }
    if rec.ChromId != req.ChromId {
      continue
    }
    validCount := rec.ValidCount
    if validCount == 0 {
      validCount = 1
    }
    f := Feature{
      Start:     int32(rec.Start),
      End:       int32(rec.End),
      Score:     rec.SumData / float32(validCount),
      MinScore:  rec.MinScore,
      MaxScore:  rec.MaxScore,
      HasMinMax: true,
      Summary:   true,
    }
    if coordFilter(f, req) {
      features = append(features, f)
    }
  }
  return features, nil
}

/* -------------------------------------------------------------------------- */

// decodeBigBedBlock parses variable-length bigBed records until the
// end of buf. Each record's "rest" field is the caller-opaque
// zero-terminated trailing bytes (autoSql-aware parsing of its
// contents is out of scope). chromId was already filtered by
// the traversal, so only coordFilter applies here. UniqueId is built
// from the block's absolute file offset plus the record's offset
// within it, not the intra-block offset alone, so two records at the
// same intra-block position in different blocks of a grouped fetch
// never collide.
func decodeBigBedBlock(buf []byte, order byteOrder, req CoordRequest, startOffset uint64) ([]Feature, error) {
  var features []Feature
  off := 0
  for off < len(buf) {
    if off+12 > len(buf) {
      return nil, newQueryError(ParseFailure, "bigBed record header truncated at offset %d", off)
    }
    recordStart := off
    start := int32(order.Uint32(buf[off+4 : off+8]))
    end := int32(order.Uint32(buf[off+8 : off+12]))
    off += 12

    termIdx := bytes.IndexByte(buf[off:], 0)
    if termIdx < 0 {
      return nil, newQueryError(ParseFailure, "bigBed record rest field missing terminator at offset %d", off)
    }
    rest := buf[off : off+termIdx]
    off += termIdx + 1

    f := Feature{
      Start:    start,
      End:      end,
      Rest:     rest,
      UniqueId: fmt.Sprintf("bb-%d", startOffset+uint64(recordStart)),
    }
    if coordFilter(f, req) {
      features = append(features, f)
    }
  }
  return features, nil
}

/* -------------------------------------------------------------------------- */

// decodeBigWigBlock reads the 24-byte block header, then itemCount
// items whose shape depends on the header's BlockType byte.
func decodeBigWigBlock(buf []byte, order byteOrder, req CoordRequest) ([]Feature, error) {
  if len(buf) < bigWigBlockHeaderSize {
    return nil, newQueryError(ParseFailure, "bigWig block header truncated: got %d bytes, want %d", len(buf), bigWigBlockHeaderSize)
  }
  hdr := bigWigBlockHeader{
    ChromId:    order.Uint32(buf[0:4]),
    BlockStart: int32(order.Uint32(buf[4:8])),
    BlockEnd:   int32(order.Uint32(buf[8:12])),
    ItemStep:   order.Uint32(buf[12:16]),
    ItemSpan:   order.Uint32(buf[16:20]),
    BlockType:  buf[20],
    Reserved:   buf[21],
    ItemCount:  order.Uint16(buf[22:24]),
  }
  items := buf[bigWigBlockHeaderSize:]

  var features []Feature
  switch hdr.BlockType {
  case blockTypeFStep:
    const itemSize = 4
    for i := 0; i < int(hdr.ItemCount); i++ {
      off := i * itemSize
      if off+itemSize > len(items) {
        return nil, newQueryError(ParseFailure, "fixed-step item %d out of range", i)
      }
      score := math.Float32frombits(order.Uint32(items[off : off+4]))
      f := Feature{
        Start: hdr.BlockStart + int32(i)*int32(hdr.ItemStep),
        End:   hdr.BlockStart + int32(i)*int32(hdr.ItemStep) + int32(hdr.ItemSpan),
        Score: score,
      }
      if coordFilter(f, req) {
        features = append(features, f)
      }
    }
  case blockTypeVStep:
    const itemSize = 8
    for i := 0; i < int(hdr.ItemCount); i++ {
      off := i * itemSize
      if off+itemSize > len(items) {
        return nil, newQueryError(ParseFailure, "variable-step item %d out of range", i)
      }
      start := int32(order.Uint32(items[off : off+4]))
      score := math.Float32frombits(order.Uint32(items[off+4 : off+8]))
      f := Feature{
        Start: start,
        End:   start + int32(hdr.ItemSpan),
        Score: score,
      }
      if coordFilter(f, req) {
        features = append(features, f)
      }
    }
  case blockTypeGraph:
    const itemSize = 12
    for i := 0; i < int(hdr.ItemCount); i++ {
      off := i * itemSize
      if off+itemSize > len(items) {
        return nil, newQueryError(ParseFailure, "graph item %d out of range", i)
      }
      start := int32(order.Uint32(items[off : off+4]))
      end := int32(order.Uint32(items[off+4 : off+8]))
      score := math.Float32frombits(order.Uint32(items[off+8 : off+12]))
      f := Feature{Start: start, End: end, Score: score}
      if coordFilter(f, req) {
        features = append(features, f)
      }
    }
  default:
    log.Printf("bigwig: unrecognized block type %d, skipping block", hdr.BlockType)
    return nil, nil
  }

  return features, nil
}

type bigWigBlockHeader struct {
  ChromId              uint32
  BlockStart, BlockEnd int32
  ItemStep, ItemSpan   uint32
  BlockType, Reserved  uint8
  ItemCount            uint16
}
