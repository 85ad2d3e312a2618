package clip

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gocv.io/x/gocv"
)

// clipCodec is the mp4v fourcc, available on every platform OpenCV ships on
const clipCodec = "mp4v"

// VideoEncoder writes clips as mp4 files into a target directory
type VideoEncoder struct {
	// dir is the directory clips are written into
	dir string
}

// NewVideoEncoder returns an instance of the VideoEncoder writing clips
// into the given directory, creating it if needed
func NewVideoEncoder(dir string) (*VideoEncoder, error) {

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating clip directory: %w", err)
	}

	return &VideoEncoder{dir: dir}, nil
}

// Encode writes the frames to a timestamped mp4 file and returns its path
func (e *VideoEncoder) Encode(frames []gocv.Mat, fps int) (string, error) {

	if len(frames) == 0 {
		return "", fmt.Errorf("no frames to encode")
	}

	path := filepath.Join(e.dir,
		fmt.Sprintf("fall_%s.mp4", time.Now().Format("20060102_150405")))

	// frame dimensions come from the first frame, the writer requires
	// every subsequent frame to match
	width := frames[0].Cols()
	height := frames[0].Rows()

	writer, err := gocv.VideoWriterFile(path, clipCodec, float64(fps),
		width, height, true)

	if err != nil {
		return "", fmt.Errorf("error opening video writer: %w", err)
	}

	defer writer.Close()

	for i := range frames {
		if err := writer.Write(frames[i]); err != nil {
			return "", fmt.Errorf("error writing frame %d: %w", i, err)
		}
	}

	return path, nil
}
