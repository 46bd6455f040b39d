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

import "bufio"
import "bytes"
import "errors"
import "fmt"
import "os"
import "strconv"
import "strings"

/* -------------------------------------------------------------------------- */

// Genome holds a reference assembly's sequence names and lengths,
// independent of any single bigWig/bigBed file's own RefsByName. The
// engine's unknown-reference short-circuit only needs a name to look
// up, not a Genome; this is the cmd/ tools' own convenience layer for
// printing and validating an assembly's chromInfo.
type Genome struct {
  Seqnames []string
  Lengths  []int
}

/* constructor
 * -------------------------------------------------------------------------- */

func NewGenome(seqnames []string, lengths []int) (Genome, error) {
  if len(seqnames) != len(lengths) {
    return Genome{}, errors.New("NewGenome: seqnames and lengths have different length")
  }
  return Genome{seqnames, lengths}, nil
}

/* -------------------------------------------------------------------------- */

// Number of chromosomes in the structure.
func (genome Genome) Length() int {
  return len(genome.Seqnames)
}

// Length of the given chromosome. Returns an error if the chromosome
// is not found.
func (genome Genome) SeqLength(seqname string) (int, error) {
  for i, s := range genome.Seqnames {
    if seqname == s {
      return genome.Lengths[i], nil
    }
  }
  return 0, errors.New("sequence not found")
}

/* convert to string
 * -------------------------------------------------------------------------- */

func (genome Genome) String() string {
  var buffer bytes.Buffer

  printRow := func(i int) {
    if i != 0 {
      buffer.WriteString("\n")
    }
    buffer.WriteString(
      fmt.Sprintf("%10s %10d",
        genome.Seqnames[i],
        genome.Lengths [i]))
  }

  buffer.WriteString(
    fmt.Sprintf("%10s %10s\n", "seqnames", "lengths"))

  for i := 0; i < genome.Length(); i++ {
    printRow(i)
  }
  return buffer.String()
}

/* i/o
 * -------------------------------------------------------------------------- */

// ReadGenome imports chromosome sizes from a UCSC-style chromInfo text
// file: a whitespace-separated table whose first column is the
// chromosome name and second column its length.
func ReadGenome(filename string) (Genome, error) {
  f, err := os.Open(filename)
  if err != nil {
    return Genome{}, err
  }
  defer f.Close()

  seqnames := []string{}
  lengths  := []int{}

  scanner := bufio.NewScanner(f)
  for scanner.Scan() {
    fields := strings.Fields(scanner.Text())
    if len(fields) == 0 {
      continue
    }
    if len(fields) < 2 {
      return Genome{}, fmt.Errorf("invalid genome file %q: expected at least 2 columns", filename)
    }
    length, err := strconv.ParseInt(fields[1], 10, 64)
    if err != nil {
      return Genome{}, fmt.Errorf("invalid genome file %q: %w", filename, err)
    }
    seqnames = append(seqnames, fields[0])
    lengths  = append(lengths,  int(length))
  }
  if err := scanner.Err(); err != nil {
    return Genome{}, err
  }
  return NewGenome(seqnames, lengths)
}
