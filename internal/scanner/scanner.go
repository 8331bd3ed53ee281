// Package scanner turns a raw log stream into candidate JSON fragments.
//
// Only lines containing Marker are considered. From such a line the fragment
// starts at the first '{' and runs to end of line; lines with the marker but
// no '{' are dropped silently.
package scanner

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// Marker is the literal token the game client's rich-presence bridge writes
// in front of every payload.
const Marker = "[BloxstrapRPC]"

// Candidate returns the JSON fragment embedded in line, if line carries the
// marker and contains a '{'.
func Candidate(line string) (string, bool) {
	if !strings.Contains(line, Marker) {
		return "", false
	}
	i := strings.IndexByte(line, '{')
	if i < 0 {
		return "", false
	}
	return line[i:], true
}

// Stats counts what the scanner has seen so far.
type Stats struct {
	Lines      uint64 // every line read
	Marked     uint64 // lines containing the marker
	Fragments  uint64 // fragments emitted
	NoFragment uint64 // marked lines without '{'
}

// Scanner is a pull iterator over fragments. It is not safe for concurrent
// use and cannot be restarted once the stream ends.
type Scanner struct {
	r     *bufio.Reader
	frag  string
	err   error
	stats Stats
}

// readBufSize matches the 1 MiB reader the Android client used for logcat.
const readBufSize = 1 << 20

func New(r io.Reader) *Scanner {
	return &Scanner{r: bufio.NewReaderSize(r, readBufSize)}
}

// Next advances to the next fragment. It blocks on the underlying reader and
// returns false at end of stream or on a read error; see Err.
func (s *Scanner) Next() bool {
	if s.err != nil {
		return false
	}
	for {
		line, err := s.r.ReadString('\n')
		if len(line) > 0 {
			s.stats.Lines++
			line = strings.TrimRight(line, "\r\n")
			if strings.Contains(line, Marker) {
				s.stats.Marked++
				if frag, ok := Candidate(line); ok {
					s.stats.Fragments++
					s.frag = frag
					if err != nil {
						s.err = err
					}
					return true
				}
				s.stats.NoFragment++
			}
		}
		if err != nil {
			s.err = err
			return false
		}
	}
}

// Fragment returns the fragment found by the last successful Next.
func (s *Scanner) Fragment() string { return s.frag }

// Err returns the error that stopped the scan. A clean end of stream is
// reported as io.EOF so callers can tell "source ended" from "never stopped".
func (s *Scanner) Err() error {
	if s.err == nil {
		return nil
	}
	if errors.Is(s.err, io.EOF) {
		return io.EOF
	}
	return s.err
}

// Stats returns counters accumulated so far.
func (s *Scanner) Stats() Stats { return s.stats }
