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
import "log"
import "os"
import "sort"
import "strconv"
import "sync"

import "github.com/pborman/getopt"

import "gonum.org/v1/plot"
import "gonum.org/v1/plot/plotter"
import "gonum.org/v1/plot/plotutil"
import "gonum.org/v1/plot/vg"

import . "github.com/cmdcolin/bigwig"

/* -------------------------------------------------------------------------- */

// collectingObserver accumulates every feature of a single region
// query, sorted by Start once Complete fires, for the plot below.
type collectingObserver struct {
  mu       sync.Mutex
  features []Feature
  done     chan error
}

func newCollectingObserver() *collectingObserver {
  return &collectingObserver{done: make(chan error, 1)}
}

func (o *collectingObserver) Next(features []Feature) {
  o.mu.Lock()
  defer o.mu.Unlock()
  o.features = append(o.features, features...)
}

func (o *collectingObserver) Complete() {
  o.mu.Lock()
  sort.Slice(o.features, func(i, j int) bool { return o.features[i].Start < o.features[j].Start })
  o.mu.Unlock()
  o.done <- nil
}

func (o *collectingObserver) Error(err error) { o.done <- err }

/* -------------------------------------------------------------------------- */

func plotCoverage(features []Feature, chrom string, start, end int32, filename string) error {
  xy := make(plotter.XYs, 0, len(features)*2)
  for _, f := range features {
    xy = append(xy, plotter.XY{X: float64(f.Start), Y: float64(f.Score)})
    xy = append(xy, plotter.XY{X: float64(f.End), Y: float64(f.Score)})
  }

  p := plot.New()
  p.Title.Text = chrom
  p.X.Label.Text = "position"
  p.Y.Label.Text = "score"

  if err := plotutil.AddLines(p, xy); err != nil {
    return err
  }
  return p.Save(8*vg.Inch, 4*vg.Inch, filename)
}

/* -------------------------------------------------------------------------- */

func main() {
  options := getopt.New()

  optOutput := options.StringLong("output", 'o', "", "output plot filename (default: <chrom>_<start>_<end>.pdf)")
  optHelp   := options.BoolLong("help", 'h', "print help")

  options.SetParameters("<INPUT.bw> <chrom> <start> <end>")
  options.Parse(os.Args)

  if *optHelp {
    options.PrintUsage(os.Stdout)
    os.Exit(0)
  }

  args := options.Args()
  if len(args) != 4 {
    options.PrintUsage(os.Stderr)
    os.Exit(1)
  }

  chrom := args[1]
  start, err := strconv.ParseInt(args[2], 10, 64)
  if err != nil {
    log.Fatal(err)
  }
  end, err := strconv.ParseInt(args[3], 10, 64)
  if err != nil {
    log.Fatal(err)
  }

  filename := *optOutput
  if filename == "" {
    filename = chrom + "_" + args[2] + "_" + args[3] + ".pdf"
  }

  f, err := os.Open(args[0])
  if err != nil {
    log.Fatal(err)
  }
  defer f.Close()

  reader := NewFileByteReader(f)
  header, err := OpenBbiFile(context.Background(), reader)
  if err != nil {
    log.Fatal(err)
  }
  engine, err := NewQueryEngine(header, reader)
  if err != nil {
    log.Fatal(err)
  }

  obs := newCollectingObserver()
  engine.ReadWigData(context.Background(), chrom, int32(start), int32(end), obs)
  if err := <-obs.done; err != nil {
    log.Fatal(err)
  }

  if err := plotCoverage(obs.features, chrom, int32(start), int32(end), filename); err != nil {
    log.Fatal(err)
  }
}
