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
import "encoding/binary"
import "math"
import "testing"

import "github.com/klauspost/compress/zlib"

/* -------------------------------------------------------------------------- */

func putFloat32(order binary.ByteOrder, b []byte, f float32) {
  order.PutUint32(b, math.Float32bits(f))
}

func TestDecodeSummaryBlock(t *testing.T) {
  order := binary.LittleEndian
  buf := make([]byte, summaryRecordSize*2)

  order.PutUint32(buf[0:4], 0)   // chromId 0
  order.PutUint32(buf[4:8], 10)  // start
  order.PutUint32(buf[8:12], 20) // end
  order.PutUint32(buf[12:16], 4) // validCount
  putFloat32(order, buf[16:20], 1)
  putFloat32(order, buf[20:24], 9)
  putFloat32(order, buf[24:28], 20) // sumData
  putFloat32(order, buf[28:32], 0)

  order.PutUint32(buf[32:36], 1) // different chrom, must be filtered
  order.PutUint32(buf[36:40], 10)
  order.PutUint32(buf[40:44], 20)
  order.PutUint32(buf[44:48], 1)

  req := CoordRequest{ChromId: 0, Start: 0, End: 100}
  features, err := decodeSummaryBlock(buf, order, req)
  if err != nil {
    t.Fatalf("unexpected error: %v", err)
  }
  if len(features) != 1 {
    t.Fatalf("expected 1 feature (other chrom filtered), got %d", len(features))
  }
  f := features[0]
  if f.Score != 5 {
    t.Errorf("expected score 20/4=5, got %v", f.Score)
  }
  if !f.Summary {
    t.Errorf("expected Summary=true")
  }
}

func TestDecodeSummaryBlockValidCountZeroFallback(t *testing.T) {
  order := binary.LittleEndian
  buf := make([]byte, summaryRecordSize)
  order.PutUint32(buf[0:4], 0)
  order.PutUint32(buf[4:8], 0)
  order.PutUint32(buf[8:12], 10)
  order.PutUint32(buf[12:16], 0) // validCount 0
  putFloat32(order, buf[24:28], 7)

  req := CoordRequest{ChromId: 0, Start: 0, End: 100}
  features, err := decodeSummaryBlock(buf, order, req)
  if err != nil {
    t.Fatalf("unexpected error: %v", err)
  }
  if len(features) != 1 || features[0].Score != 7 {
    t.Fatalf("expected score 7/max(0,1)=7, got %+v", features)
  }
}

func TestDecodeBigWigFixedStep(t *testing.T) {
  order := binary.LittleEndian
  buf := make([]byte, bigWigBlockHeaderSize+4*3)
  order.PutUint32(buf[0:4], 0)               // chromId
  order.PutUint32(buf[4:8], uint32(100))     // blockStart
  order.PutUint32(buf[8:12], uint32(130))    // blockEnd
  order.PutUint32(buf[12:16], 10)            // itemStep
  order.PutUint32(buf[16:20], 10)            // itemSpan
  buf[20] = blockTypeFStep
  buf[21] = 0
  order.PutUint16(buf[22:24], 3)

  putFloat32(order, buf[24:28], 1.5)
  putFloat32(order, buf[28:32], 2.5)
  putFloat32(order, buf[32:36], 3.5)

  req := CoordRequest{ChromId: 0, Start: 0, End: 1000}
  features, err := decodeBigWigBlock(buf, order, req)
  if err != nil {
    t.Fatalf("unexpected error: %v", err)
  }
  if len(features) != 3 {
    t.Fatalf("expected 3 features, got %d", len(features))
  }
  if features[1].Start != 110 || features[1].End != 120 {
    t.Errorf("expected item 1 at [110,120), got [%d,%d)", features[1].Start, features[1].End)
  }
  if features[1].Score != 2.5 {
    t.Errorf("expected score 2.5, got %v", features[1].Score)
  }
}

func TestDecodeBigWigVariableStep(t *testing.T) {
  order := binary.BigEndian
  buf := make([]byte, bigWigBlockHeaderSize+8*2)
  order.PutUint32(buf[0:4], 0)
  order.PutUint32(buf[4:8], 0)
  order.PutUint32(buf[8:12], 0)
  order.PutUint32(buf[12:16], 0)
  order.PutUint32(buf[16:20], 5) // itemSpan
  buf[20] = blockTypeVStep
  order.PutUint16(buf[22:24], 2)

  order.PutUint32(buf[24:28], 200)
  putFloat32(order, buf[28:32], 1.0)
  order.PutUint32(buf[32:36], 300)
  putFloat32(order, buf[36:40], 2.0)

  req := CoordRequest{ChromId: 0, Start: 0, End: 1000}
  features, err := decodeBigWigBlock(buf, order, req)
  if err != nil {
    t.Fatalf("unexpected error: %v", err)
  }
  if len(features) != 2 {
    t.Fatalf("expected 2 features, got %d", len(features))
  }
  if features[0].Start != 200 || features[0].End != 205 {
    t.Errorf("expected [200,205), got [%d,%d)", features[0].Start, features[0].End)
  }
}

func TestDecodeBigWigGraph(t *testing.T) {
  order := binary.LittleEndian
  buf := make([]byte, bigWigBlockHeaderSize+12)
  buf[20] = blockTypeGraph
  order.PutUint16(buf[22:24], 1)
  order.PutUint32(buf[24:28], 50)
  order.PutUint32(buf[28:32], 75)
  putFloat32(order, buf[32:36], 9.25)

  req := CoordRequest{ChromId: 0, Start: 0, End: 1000}
  features, err := decodeBigWigBlock(buf, order, req)
  if err != nil {
    t.Fatalf("unexpected error: %v", err)
  }
  if len(features) != 1 || features[0].Start != 50 || features[0].End != 75 || features[0].Score != 9.25 {
    t.Fatalf("unexpected graph feature: %+v", features)
  }
}

func TestDecodeBigWigUnknownBlockType(t *testing.T) {
  order := binary.LittleEndian
  buf := make([]byte, bigWigBlockHeaderSize)
  buf[20] = 99

  req := CoordRequest{ChromId: 0, Start: 0, End: 1000}
  features, err := decodeBigWigBlock(buf, order, req)
  if err != nil {
    t.Fatalf("expected no error for unrecognized block type, got %v", err)
  }
  if features != nil {
    t.Fatalf("expected no features for unrecognized block type, got %+v", features)
  }
}

func TestDecodeBigWigCoordFilter(t *testing.T) {
  order := binary.LittleEndian
  buf := make([]byte, bigWigBlockHeaderSize+4*2)
  order.PutUint32(buf[4:8], 0)
  order.PutUint32(buf[12:16], 10)
  order.PutUint32(buf[16:20], 10)
  buf[20] = blockTypeFStep
  order.PutUint16(buf[22:24], 2)
  putFloat32(order, buf[24:28], 1)
  putFloat32(order, buf[28:32], 2)

  // item 0: [0,10), item 1: [10,20). req=[15,20) excludes item 0.
  req := CoordRequest{ChromId: 0, Start: 15, End: 20}
  features, err := decodeBigWigBlock(buf, order, req)
  if err != nil {
    t.Fatalf("unexpected error: %v", err)
  }
  if len(features) != 1 || features[0].Start != 10 {
    t.Fatalf("expected only item 1 to pass coordFilter, got %+v", features)
  }
}

func TestDecodeBigBedBlock(t *testing.T) {
  order := binary.LittleEndian
  var buf bytes.Buffer

  appendRecord := func(chromId uint32, start, end int32, rest string) {
    header := make([]byte, 12)
    order.PutUint32(header[0:4], chromId)
    order.PutUint32(header[4:8], uint32(start))
    order.PutUint32(header[8:12], uint32(end))
    buf.Write(header)
    buf.WriteString(rest)
    buf.WriteByte(0)
  }
  appendRecord(0, 10, 20, "geneA\t100")
  appendRecord(0, 200, 210, "geneB\t50")

  req := CoordRequest{ChromId: 0, Start: 0, End: 1000}
  features, err := decodeBigBedBlock(buf.Bytes(), order, req, 0)
  if err != nil {
    t.Fatalf("unexpected error: %v", err)
  }
  if len(features) != 2 {
    t.Fatalf("expected 2 features, got %d", len(features))
  }
  if string(features[0].Rest) != "geneA\t100" {
    t.Errorf("expected rest field %q, got %q", "geneA\t100", features[0].Rest)
  }
  if features[0].UniqueId == features[1].UniqueId {
    t.Errorf("expected distinct uniqueIds, got %q twice", features[0].UniqueId)
  }
}

// TestDecodeBigBedUniqueIdAcrossBlocks guards against the UniqueId
// collision that would occur if it were built only from the
// intra-block offset: two identically-shaped blocks located at
// different absolute file offsets put their first record at the same
// intra-block offset (0), so the absolute block offset must be folded
// into the id for it to serve its cross-block dedup purpose.
func TestDecodeBigBedUniqueIdAcrossBlocks(t *testing.T) {
  order := binary.LittleEndian
  buildBlock := func(start, end int32, rest string) []byte {
    var buf bytes.Buffer
    header := make([]byte, 12)
    order.PutUint32(header[0:4], 0)
    order.PutUint32(header[4:8], uint32(start))
    order.PutUint32(header[8:12], uint32(end))
    buf.Write(header)
    buf.WriteString(rest)
    buf.WriteByte(0)
    return buf.Bytes()
  }

  blockA := buildBlock(10, 20, "geneA")
  blockB := buildBlock(10, 20, "geneB")

  req := CoordRequest{ChromId: 0, Start: 0, End: 1000}
  featuresA, err := decodeBigBedBlock(blockA, order, req, 1000)
  if err != nil {
    t.Fatalf("unexpected error decoding block A: %v", err)
  }
  featuresB, err := decodeBigBedBlock(blockB, order, req, 2000)
  if err != nil {
    t.Fatalf("unexpected error decoding block B: %v", err)
  }
  if len(featuresA) != 1 || len(featuresB) != 1 {
    t.Fatalf("expected one record per block, got %d and %d", len(featuresA), len(featuresB))
  }
  if featuresA[0].UniqueId == featuresB[0].UniqueId {
    t.Fatalf("expected distinct uniqueIds across blocks, got %q twice", featuresA[0].UniqueId)
  }
}

func TestDecodeBigBedMissingTerminator(t *testing.T) {
  order := binary.LittleEndian
  header := make([]byte, 12)
  buf := append(header, []byte("no terminator")...)

  req := CoordRequest{ChromId: 0, Start: 0, End: 1000}
  if _, err := decodeBigBedBlock(buf, order, req, 0); err == nil {
    t.Fatalf("expected error for missing zero terminator")
  }
}

func TestBlockDecoderDecompressesBeforeDecoding(t *testing.T) {
  order := binary.LittleEndian
  raw := make([]byte, bigWigBlockHeaderSize+4)
  order.PutUint32(raw[12:16], 1)
  order.PutUint32(raw[16:20], 1)
  raw[20] = blockTypeFStep
  order.PutUint16(raw[22:24], 1)
  putFloat32(order, raw[24:28], 42)

  var compressed bytes.Buffer
  w := zlib.NewWriter(&compressed)
  if _, err := w.Write(raw); err != nil {
    t.Fatalf("failed to prepare fixture: %v", err)
  }
  w.Close()

  d := NewBlockDecoder()
  req := CoordRequest{ChromId: 0, Start: 0, End: 100}
  features, err := d.Decode(compressed.Bytes(), BlockKindBigWig, order, true, req, 0)
  if err != nil {
    t.Fatalf("unexpected error: %v", err)
  }
  if len(features) != 1 || features[0].Score != 42 {
    t.Fatalf("unexpected decode result: %+v", features)
  }
}

func TestBlockDecoderDecompressionFailure(t *testing.T) {
  d := NewBlockDecoder()
  req := CoordRequest{ChromId: 0, Start: 0, End: 100}
  _, err := d.Decode([]byte{0xff, 0xff, 0xff}, BlockKindBigWig, binary.LittleEndian, true, req, 0)
  if err == nil {
    t.Fatalf("expected decompression error for garbage input")
  }
}
