// Package scan reads logical lines from an EPF byte stream. A logical line
// is any run of bytes terminated by the two-byte sequence 0x02 0x0A. No
// other package touches raw stream bytes.
package scan

import (
	"bufio"
	"io"
)

// EPF framing constants. These are bit-exact properties of the format.
const (
	// TerminatorByte precedes the newline in the record terminator.
	TerminatorByte byte = 0x02

	// FieldSeparator separates fields within a logical line.
	FieldSeparator byte = 0x01
)

const readBufferSize = 64 * 1024

// Scanner yields logical lines from a sequential, forward-only byte source.
// It never seeks and imposes no line length limit.
type Scanner struct {
	r         *bufio.Reader
	bytesRead int64
	linesRead int64
	done      bool
}

// NewScanner creates a Scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: bufio.NewReaderSize(r, readBufferSize)}
}

// Next returns the next logical line with the terminator stripped. When the
// source is exhausted with a non-empty partial buffer, that content is
// returned once as a final unterminated line; every call after that returns
// io.EOF. The returned slice is owned by the caller.
func (s *Scanner) Next() ([]byte, error) {
	if s.done {
		return nil, io.EOF
	}

	var line []byte
	for {
		chunk, err := s.r.ReadBytes('\n')
		line = append(line, chunk...)
		s.bytesRead += int64(len(chunk))

		if err == io.EOF {
			s.done = true
			if len(line) == 0 {
				return nil, io.EOF
			}
			s.linesRead++
			return line, nil
		}
		if err != nil {
			return nil, err
		}

		// A newline only terminates the line when preceded by 0x02; a bare
		// newline is ordinary line content.
		if len(line) >= 2 && line[len(line)-2] == TerminatorByte {
			s.linesRead++
			return line[:len(line)-2], nil
		}
	}
}

// BytesRead returns the total bytes consumed from the source, terminators
// included.
func (s *Scanner) BytesRead() int64 {
	return s.bytesRead
}

// LinesRead returns the number of logical lines returned so far.
func (s *Scanner) LinesRead() int64 {
	return s.linesRead
}
