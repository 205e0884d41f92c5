package telemetry

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/relabs-tech/motion_cube/internal/quat"
)

// Record is one telemetry row: the sample timestamp, the smoothed
// orientation, the raw acceleration, and the bounded position.
type Record struct {
	Timestamp   float64
	Orientation quat.Quaternion
	Accel       quat.Vec3
	Position    quat.Vec3
}

const header = "timestamp,qx,qy,qz,qw,ax,ay,az,px,py,pz"

// Stats are counters the HUD can display. Append errors are counted
// here and nowhere else; telemetry must never slow down or fail the
// integration path.
type Stats struct {
	Records uint64
	Errors  uint64
}

// CSVSink appends records to a CSV file. The file is created if
// absent and never truncated; the header is written only when the
// file starts out empty, so restarts keep appending to one log.
type CSVSink struct {
	mu    sync.Mutex
	file  *os.File
	buf   *bufio.Writer
	stats Stats
}

// OpenCSV opens (or creates) the sink file in append mode.
func OpenCSV(path string) (*CSVSink, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("telemetry: stat %s: %w", path, err)
	}

	s := &CSVSink{file: file, buf: bufio.NewWriter(file)}
	if info.Size() == 0 {
		if _, err := fmt.Fprintln(s.buf, header); err != nil {
			file.Close()
			return nil, fmt.Errorf("telemetry: write header: %w", err)
		}
	}

	log.Printf("telemetry: logging to %s", path)
	return s, nil
}

// Append writes one record. Failures are counted, not propagated.
func (s *CSVSink) Append(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return
	}

	_, err := fmt.Fprintf(s.buf, "%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f\n",
		r.Timestamp,
		r.Orientation.X, r.Orientation.Y, r.Orientation.Z, r.Orientation.W,
		r.Accel.X, r.Accel.Y, r.Accel.Z,
		r.Position.X, r.Position.Y, r.Position.Z,
	)
	if err != nil {
		s.stats.Errors++
		return
	}
	s.stats.Records++
}

// Stats returns the counters so far.
func (s *CSVSink) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close flushes and closes the file. Safe to call twice.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	flushErr := s.buf.Flush()
	closeErr := s.file.Close()
	s.file = nil
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
