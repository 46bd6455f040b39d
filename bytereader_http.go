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

import "context"
import "fmt"
import "io"
import "net/http"

/* -------------------------------------------------------------------------- */

// HTTPByteReader backs ByteReader with a series of HTTP range-request
// GETs. It has no io.ReadSeeker half (the query engine only ever
// issues positional reads through BlockCoalescer-sized ranges, never a
// sequential cursor) and threads a context.Context through so a
// cancelled query aborts the in-flight request rather than letting it
// run to completion unattended.
type HTTPByteReader struct {
  URL    string
  Client *http.Client
}

func NewHTTPByteReader(url string) *HTTPByteReader {
  return &HTTPByteReader{URL: url, Client: http.DefaultClient}
}

func (r *HTTPByteReader) ReadAt(ctx context.Context, buf []byte, offset int64) error {
  req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
  if err != nil {
    return wrapQueryError(IoFailure, err)
  }
  req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+int64(len(buf))-1))

  client := r.Client
  if client == nil {
    client = http.DefaultClient
  }

  resp, err := client.Do(req)
  if err != nil {
    if ctx.Err() != nil {
      return wrapQueryError(Cancelled, ctx.Err())
    }
    return wrapQueryError(IoFailure, err)
  }
  defer resp.Body.Close()

  if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
    return newQueryError(IoFailure, "unexpected HTTP status %d fetching range %d-%d", resp.StatusCode, offset, offset+int64(len(buf)))
  }

  // a server that ignores the Range header answers 200 with the whole
  // resource from byte 0; skip ahead to offset in that case.
  if resp.StatusCode == http.StatusOK && offset > 0 {
    if _, err := io.CopyN(io.Discard, resp.Body, offset); err != nil {
      if ctx.Err() != nil {
        return wrapQueryError(Cancelled, ctx.Err())
      }
      return wrapQueryError(IoFailure, err)
    }
  }

  n := 0
  for n < len(buf) {
    m, err := resp.Body.Read(buf[n:])
    n += m
    if err != nil {
      if n == len(buf) {
        break
      }
      if ctx.Err() != nil {
        return wrapQueryError(Cancelled, ctx.Err())
      }
      return wrapQueryError(IoFailure, err)
    }
  }
  return nil
}
