package monitor

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gocv.io/x/gocv"

	"github.com/sentinelcare/go-fallsense/pose"
)

// Sample is one frame of input to a monitoring session
type Sample struct {
	// Keypoints is the detected pose, nil when no person was found
	Keypoints pose.Frame
	// Image is the raw video frame when the source provides one, used
	// for evidence clips.  Ownership stays with the source.
	Image gocv.Mat
	// HasImage indicates Image holds a frame
	HasImage bool
}

// Source supplies frames to a monitoring session.  Next returns io.EOF
// when the stream ends.  The pose estimation producing the keypoints is an
// external collaborator, sources just carry its output.
type Source interface {
	Next() (Sample, error)
	Close() error
}

// JSONLSource replays a recorded keypoint stream from a file holding one
// JSON document per line: an array of landmark objects, or null for a
// frame with no detection
type JSONLSource struct {
	file    *os.File
	scanner *bufio.Scanner
	line    int
}

// OpenJSONL returns a JSONLSource reading the given file
func OpenJSONL(path string) (*JSONLSource, error) {

	f, err := os.Open(path)

	if err != nil {
		return nil, fmt.Errorf("error opening keypoint stream: %w", err)
	}

	scanner := bufio.NewScanner(f)

	// keypoint lines are long, 17 landmarks of 4 floats each
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	return &JSONLSource{file: f, scanner: scanner}, nil
}

// Next returns the next recorded frame
func (s *JSONLSource) Next() (Sample, error) {

	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return Sample{}, fmt.Errorf("error reading keypoint stream: %w", err)
		}
		return Sample{}, io.EOF
	}

	s.line++

	var frame pose.Frame

	if err := json.Unmarshal(s.scanner.Bytes(), &frame); err != nil {
		return Sample{}, fmt.Errorf("line %d: invalid keypoint frame: %w", s.line, err)
	}

	if frame != nil && !frame.Valid() {
		return Sample{}, fmt.Errorf("line %d: frame has %d landmarks, want %d",
			s.line, len(frame), pose.NumLandmarks)
	}

	return Sample{Keypoints: frame}, nil
}

// Close releases the underlying file
func (s *JSONLSource) Close() error {
	return s.file.Close()
}
