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
import "fmt"
import "log"
import "os"

import "github.com/pborman/getopt"

import . "github.com/cmdcolin/bigwig"

/* -------------------------------------------------------------------------- */

func main() {
  options := getopt.New()

  optHelp := options.BoolLong("help", 'h', "print help")

  options.SetParameters("<INPUT.bw|bb> <ucsc genome assembly, e.g. hg38>")
  options.Parse(os.Args)

  if *optHelp {
    options.PrintUsage(os.Stdout)
    os.Exit(0)
  }

  args := options.Args()
  if len(args) != 2 {
    options.PrintUsage(os.Stderr)
    os.Exit(1)
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

  genome, err := FetchUCSCChromInfo(args[1])
  if err != nil {
    log.Fatal(err)
  }

  onlyInFile, onlyInGenome := CrossCheckRefs(header.RefsByName(), genome)

  if len(onlyInFile) == 0 && len(onlyInGenome) == 0 {
    fmt.Println("ok: every reference in the file is known to the assembly")
    return
  }
  for _, name := range onlyInFile {
    fmt.Printf("reference %q is present in the file but not in %s\n", name, args[1])
  }
  for _, name := range onlyInGenome {
    fmt.Printf("reference %q is part of %s but missing from the file\n", name, args[1])
  }
  os.Exit(1)
}
