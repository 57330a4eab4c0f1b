package output

import (
	"bufio"
	"errors"
	"fmt"
	"os"
)

const timecodeHeader = "# timecode format v2\n"

// timestampLog records one line per emitted frame in mkvmerge timecode v2
// form: milliseconds with a three digit microsecond fraction.
type timestampLog struct {
	fp    *os.File
	w     *bufio.Writer
	flush bool
}

func openTimestampLog(path string, flush bool) (*timestampLog, error) {
	fp, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open timestamp file %s: %w", path, err)
	}
	l := &timestampLog{fp: fp, w: bufio.NewWriter(fp), flush: flush}
	if _, err := l.w.WriteString(timecodeHeader); err != nil {
		_ = fp.Close()
		return nil, fmt.Errorf("failed to write timestamp header: %w", err)
	}
	return l, nil
}

func (l *timestampLog) write(timestampUs int64) error {
	if _, err := fmt.Fprintf(l.w, "%d.%03d\n", timestampUs/1000, timestampUs%1000); err != nil {
		return fmt.Errorf("failed to write timestamp: %w", err)
	}
	if l.flush {
		return l.w.Flush()
	}
	return nil
}

func (l *timestampLog) close() error {
	return errors.Join(l.w.Flush(), l.fp.Close())
}
