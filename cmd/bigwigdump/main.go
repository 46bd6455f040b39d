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

package main

/* -------------------------------------------------------------------------- */

import "context"
import "encoding/binary"
import "fmt"
import "log"
import "os"
import "strconv"

import "github.com/pborman/getopt"

import . "github.com/cmdcolin/bigwig"

/* -------------------------------------------------------------------------- */

// dump walks the CIR tree for a region and prints every surviving leaf
// block descriptor, without fetching or decoding any of it -- a
// debugging aid for inspecting the traversal's output in isolation
// from block decoding.
func dump(reader ByteReader, header *BbiFile, chrom string, start, end int32) error {
  chromId, ok := header.RefsByName()[chrom]
  if !ok {
    return fmt.Errorf("unknown reference %q", chrom)
  }

  cirBlockSize, err := header.CirBlockSize(context.Background())
  if err != nil {
    return err
  }

  var order binary.ByteOrder = binary.LittleEndian
  if header.IsBigEndian() {
    order = binary.BigEndian
  }

  traverser := NewIndexTraverser(NewReadCache(reader), order)
  req := CoordRequest{ChromId: chromId, Start: start, End: end}

  descriptors, err := traverser.Walk(context.Background(), req, header.CirTreeOffset(), cirBlockSize)
  if err != nil {
    return err
  }

  for _, d := range descriptors {
    fmt.Printf("%s\t%d\t%d\n", chrom, d.Offset, d.Length)
  }
  return nil
}

/* -------------------------------------------------------------------------- */

func main() {
  options := getopt.New()

  optURL  := options.StringLong("url", 'u', "", "fetch the input over HTTP range requests instead of opening a local file; when set, <INPUT.bw|bb> is omitted")
  optHelp := options.BoolLong("help", 'h', "print help")

  options.SetParameters("<INPUT.bw|bb> <chrom> [<start> <end>]")
  options.Parse(os.Args)

  if *optHelp {
    options.PrintUsage(os.Stdout)
    os.Exit(0)
  }

  args := options.Args()
  wantArgs := 2 // <chrom> plus <INPUT.bw|bb>
  if *optURL != "" {
    wantArgs = 1 // the file comes from -url instead of a positional arg
  }
  if len(args) != wantArgs && len(args) != wantArgs+2 {
    options.PrintUsage(os.Stderr)
    os.Exit(1)
  }

  var reader ByteReader
  if *optURL != "" {
    reader = NewHTTPByteReader(*optURL)
  } else {
    f, err := os.Open(args[0])
    if err != nil {
      log.Fatal(err)
    }
    defer f.Close()
    reader = NewFileByteReader(f)
  }
  chromArg := args[wantArgs-1]
  rangeArgs := args[wantArgs:]

  header, err := OpenBbiFile(context.Background(), reader)
  if err != nil {
    log.Fatal(err)
  }

  start, end := int32(0), int32(1<<30)
  if len(rangeArgs) == 2 {
    s, err := strconv.ParseInt(rangeArgs[0], 10, 64)
    if err != nil {
      log.Fatal(err)
    }
    e, err := strconv.ParseInt(rangeArgs[1], 10, 64)
    if err != nil {
      log.Fatal(err)
    }
    start, end = int32(s), int32(e)
  }

  if err := dump(reader, header, chromArg, start, end); err != nil {
    log.Fatal(err)
  }
}
