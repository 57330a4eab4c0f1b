package sink

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/smazurov/framegate/internal/frame"
	"github.com/smazurov/framegate/internal/logging"
)

// File writes frames to a file, rotating according to segment and split mode.
type File struct {
	opts   Options
	logger logging.Logger

	out         io.Writer
	fp          *os.File // nil for stdout
	w           *bufio.Writer
	path        string
	count       int
	fileStartMs int64
	closed      bool
}

// NewFile creates a file sink. No file is opened until the first write or Open.
func NewFile(opts Options, logger logging.Logger) (*File, error) {
	if opts.Output == "" {
		return nil, errors.New("file sink requires an output path")
	}
	if !opts.Literal && opts.Output != "-" {
		if _, err := countVerbs(opts.Output); err != nil {
			return nil, err
		}
	}
	return &File{opts: opts, logger: logger}, nil
}

// Open opens the first file now instead of on the first write, so callers
// can report an unusable path up front. It is a no-op once a file is open.
func (s *File) Open(timestampUs int64) error {
	if s.closed {
		return ErrClosed
	}
	if s.w != nil {
		return nil
	}
	return s.openFile(timestampUs)
}

// Write implements Sink.
func (s *File) Write(data []byte, timestampUs int64, flags frame.Flags) error {
	if s.closed {
		return ErrClosed
	}
	if len(data) == 0 {
		return nil
	}

	if s.needsNewFile(timestampUs, flags) {
		if err := s.closeFile(); err != nil {
			return err
		}
		if err := s.openFile(timestampUs); err != nil {
			return err
		}
	}

	if _, err := s.w.Write(data); err != nil {
		return fmt.Errorf("failed to write output bytes to %s: %w", s.path, err)
	}
	if s.opts.Flush {
		if err := s.w.Flush(); err != nil {
			return fmt.Errorf("failed to flush %s: %w", s.path, err)
		}
	}
	return nil
}

// needsNewFile reports whether a file must be (re)opened before writing.
// Segments are only cut on keyframes; a restart is always a keyframe.
func (s *File) needsNewFile(timestampUs int64, flags frame.Flags) bool {
	if s.w == nil {
		return true
	}
	if s.opts.Segment > 0 && flags.Has(frame.FlagKeyframe) &&
		timestampUs/1000-s.fileStartMs > s.opts.Segment.Milliseconds() {
		return true
	}
	return s.opts.Split && flags.Has(frame.FlagRestart)
}

func (s *File) openFile(timestampUs int64) error {
	if s.opts.Output == "-" {
		s.out = os.Stdout
		s.path = "-"
	} else {
		name := s.opts.Output
		if !s.opts.Literal {
			name = Filename(s.opts.Output, s.count)
		}
		s.count++
		if s.opts.Wrap > 0 {
			s.count %= s.opts.Wrap
		}

		fp, err := os.Create(name)
		if err != nil {
			return fmt.Errorf("failed to open output file %s: %w", name, err)
		}
		s.fp = fp
		s.out = fp
		s.path = name
		s.logger.Debug("Opened output file", "path", name)
	}

	s.w = bufio.NewWriter(s.out)
	s.fileStartMs = timestampUs / 1000
	return nil
}

func (s *File) closeFile() error {
	if s.w == nil {
		return nil
	}
	err := s.w.Flush()
	if s.fp != nil {
		err = errors.Join(err, s.fp.Close())
	}
	s.w, s.fp, s.out = nil, nil, nil
	if err != nil {
		return fmt.Errorf("failed to close %s: %w", s.path, err)
	}
	return nil
}

// Path returns the name of the file most recently opened, or "" if none.
func (s *File) Path() string {
	return s.path
}

// Close flushes and closes the current file. Safe to call more than once.
func (s *File) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.closeFile()
}

// Filename substitutes n into a pattern holding at most one integer verb
// (%d, %04d, %x, ...). "%%" stands for a literal percent sign.
func Filename(pattern string, n int) string {
	if !strings.Contains(pattern, "%") {
		return pattern
	}
	verbs, err := countVerbs(pattern)
	if err != nil || verbs == 0 {
		return strings.ReplaceAll(pattern, "%%", "%")
	}
	return fmt.Sprintf(pattern, n)
}

// countVerbs returns the number of integer verbs in pattern and rejects
// any other use of '%'.
func countVerbs(pattern string) (int, error) {
	verbs := 0
	for i := 0; i < len(pattern); i++ {
		if pattern[i] != '%' {
			continue
		}
		j := i + 1
		if j < len(pattern) && pattern[j] == '%' {
			i = j
			continue
		}
		for j < len(pattern) && strings.IndexByte("-+ #0123456789", pattern[j]) >= 0 {
			j++
		}
		if j >= len(pattern) || strings.IndexByte("dxXob", pattern[j]) < 0 {
			return 0, fmt.Errorf("output pattern %q: '%%' must start an integer verb or be written as %%%%", pattern)
		}
		verbs++
		i = j
	}
	if verbs > 1 {
		return 0, fmt.Errorf("output pattern %q has %d counters, at most one allowed", pattern, verbs)
	}
	return verbs, nil
}
