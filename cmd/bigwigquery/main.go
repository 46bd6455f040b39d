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

import "bufio"
import "context"
import "fmt"
import "log"
import "os"
import "strconv"
import "strings"

import "github.com/pborman/getopt"

import . "github.com/cmdcolin/bigwig"
import   "github.com/cmdcolin/bigwig/lib/progress"

/* -------------------------------------------------------------------------- */

type Config struct {
  Verbose int
}

/* -------------------------------------------------------------------------- */

type region struct {
  chrom      string
  start, end int32
}

func parseRegionsFile(filename string) ([]region, error) {
  f, err := os.Open(filename)
  if err != nil {
    return nil, err
  }
  defer f.Close()

  var regions []region
  scanner := bufio.NewScanner(f)
  for scanner.Scan() {
    fields := strings.Fields(scanner.Text())
    if len(fields) == 0 {
      continue
    }
    if len(fields) < 3 {
      return nil, fmt.Errorf("invalid regions file %q: expected at least 3 columns", filename)
    }
    start, err := strconv.ParseInt(fields[1], 10, 64)
    if err != nil {
      return nil, err
    }
    end, err := strconv.ParseInt(fields[2], 10, 64)
    if err != nil {
      return nil, err
    }
    regions = append(regions, region{chrom: fields[0], start: int32(start), end: int32(end)})
  }
  return regions, scanner.Err()
}

/* -------------------------------------------------------------------------- */

// stdoutObserver prints every feature of a region query as one
// tab-separated line, prefixed with the region it came from.
type stdoutObserver struct {
  region region
  done   chan error
}

func newStdoutObserver(r region) *stdoutObserver {
  return &stdoutObserver{region: r, done: make(chan error, 1)}
}

func (o *stdoutObserver) Next(features []Feature) {
  for _, f := range features {
    if f.Summary {
      fmt.Printf("%s\t%d\t%d\t%g\n", o.region.chrom, f.Start, f.End, f.Score)
    } else if f.Rest != nil {
      fmt.Printf("%s\t%d\t%d\t%s\n", o.region.chrom, f.Start, f.End, f.Rest)
    } else {
      fmt.Printf("%s\t%d\t%d\t%g\n", o.region.chrom, f.Start, f.End, f.Score)
    }
  }
}

func (o *stdoutObserver) Complete() {
  o.done <- nil
}

func (o *stdoutObserver) Error(err error) {
  o.done <- err
}

/* -------------------------------------------------------------------------- */

func runQuery(config Config, engine *QueryEngine, r region) error {
  obs := newStdoutObserver(r)
  engine.ReadWigData(context.Background(), r.chrom, r.start, r.end, obs)
  return <-obs.done
}

/* -------------------------------------------------------------------------- */

func main() {
  config := Config{}

  options := getopt.New()

  optRegions := options.StringLong("regions", 'r', "", "BED3 file of regions to query in batch instead of a single region on the command line")
  optURL     := options.StringLong("url", 'u', "", "fetch the input over HTTP range requests instead of opening a local file; when set, <INPUT.bw|bb> is omitted")
  optHelp    := options.BoolLong("help", 'h', "print help")
  optVerbose := options.CounterLong("verbose", 'v', "be verbose")

  options.SetParameters("<INPUT.bw|bb> [<chrom> <start> <end>]")
  options.Parse(os.Args)

  if *optHelp {
    options.PrintUsage(os.Stdout)
    os.Exit(0)
  }
  config.Verbose = *optVerbose

  args := options.Args()
  wantArgs := 1 // <INPUT.bw|bb>
  if *optURL != "" {
    wantArgs = 0 // the file comes from -url instead of a positional arg
  }
  if len(args) != wantArgs && len(args) != wantArgs+3 {
    options.PrintUsage(os.Stderr)
    os.Exit(1)
  }
  regionArgs := args[wantArgs:]

  var regions []region
  if *optRegions != "" {
    var err error
    regions, err = parseRegionsFile(*optRegions)
    if err != nil {
      log.Fatal(err)
    }
  } else {
    if len(regionArgs) != 3 {
      log.Fatal("a single region requires <chrom> <start> <end> on the command line, or -regions <FILE> for batch mode")
    }
    start, err := strconv.ParseInt(regionArgs[1], 10, 64)
    if err != nil {
      log.Fatal(err)
    }
    end, err := strconv.ParseInt(regionArgs[2], 10, 64)
    if err != nil {
      log.Fatal(err)
    }
    regions = []region{{chrom: regionArgs[0], start: int32(start), end: int32(end)}}
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

  header, err := OpenBbiFile(context.Background(), reader)
  if err != nil {
    log.Fatal(err)
  }
  engine, err := NewQueryEngine(header, reader)
  if err != nil {
    log.Fatal(err)
  }

  p := progress.New(len(regions), 100)
  for i, r := range regions {
    if err := runQuery(config, engine, r); err != nil {
      log.Fatal(err)
    }
    if config.Verbose > 0 && len(regions) > 1 {
      p.PrintStderr(i + 1)
    }
  }
}
