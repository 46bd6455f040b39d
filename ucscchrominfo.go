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

import "database/sql"
import "fmt"

import _ "github.com/go-sql-driver/mysql"

/* -------------------------------------------------------------------------- */

// FetchUCSCChromInfo queries UCSC's public genome-mysql server for an
// assembly's chromInfo table and returns it as a Genome. It is a cmd/
// convenience for validating a bigWig/bigBed's RefsByName against the
// assembly UCSC itself publishes, not something the query engine
// depends on.
func FetchUCSCChromInfo(genome string) (Genome, error) {
  db, err := sql.Open("mysql",
    fmt.Sprintf("genome@tcp(genome-mysql.cse.ucsc.edu:3306)/%s", genome))
  if err != nil {
    return Genome{}, err
  }
  defer db.Close()

  if err := db.Ping(); err != nil {
    return Genome{}, err
  }

  rows, err := db.Query("SELECT chrom, size FROM chromInfo")
  if err != nil {
    return Genome{}, err
  }
  defer rows.Close()

  seqnames := []string{}
  lengths  := []int{}

  var chrom string
  var size  int

  for rows.Next() {
    if err := rows.Scan(&chrom, &size); err != nil {
      return Genome{}, err
    }
    seqnames = append(seqnames, chrom)
    lengths  = append(lengths,  size)
  }
  if err := rows.Err(); err != nil {
    return Genome{}, err
  }
  return NewGenome(seqnames, lengths)
}

// CrossCheckRefs reports every reference name that RefsByName carries
// but genome does not, and vice versa -- a bigWig/bigBed file is free
// to index a subset of an assembly's chromosomes, but any name
// outside the assembly entirely usually signals a mismatched genome
// build.
func CrossCheckRefs(refs map[string]uint32, genome Genome) (onlyInFile, onlyInGenome []string) {
  genomeSet := make(map[string]bool, genome.Length())
  for _, s := range genome.Seqnames {
    genomeSet[s] = true
  }
  for name := range refs {
    if !genomeSet[name] {
      onlyInFile = append(onlyInFile, name)
    }
  }
  fileSet := make(map[string]bool, len(refs))
  for name := range refs {
    fileSet[name] = true
  }
  for _, s := range genome.Seqnames {
    if !fileSet[s] {
      onlyInGenome = append(onlyInGenome, s)
    }
  }
  return onlyInFile, onlyInGenome
}
