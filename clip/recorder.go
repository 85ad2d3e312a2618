/*
Package clip captures video evidence around a confirmed fall.  A Recorder
keeps a rolling buffer of the most recent raw frames and, once triggered,
collects a fixed number of post trigger frames before handing the whole
clip to an Encoder sink.
*/
package clip

import (
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// Encoder persists a finished clip and returns the file path of the
// produced artifact
type Encoder interface {
	Encode(frames []gocv.Mat, fps int) (string, error)
}

// RecorderParams defines the configuration for the Recorder
type RecorderParams struct {
	// SecondsBefore is how much footage leading up to the trigger to keep
	SecondsBefore int
	// SecondsAfter is how much footage after the trigger to capture
	SecondsAfter int
	// FPS is the approximate frame rate frames arrive at, used to convert
	// seconds into frame counts and stamped on the encoded clip
	FPS int
}

// DefaultRecorderParams returns an instance of RecorderParams configured
// with default values of:
// - Seconds Before: 5
// - Seconds After: 0
// - FPS: 15
func DefaultRecorderParams() RecorderParams {
	return RecorderParams{
		SecondsBefore: 5,
		SecondsAfter:  0,
		FPS:           15,
	}
}

// Recorder buffers raw frames around a fall trigger.  Frames are cloned on
// the way in and released once a clip is encoded or evicted, the caller
// keeps ownership of the Mats it passes.  At most one recording session is
// active at a time, repeated triggers while recording are ignored.  Not
// safe for concurrent use.
type Recorder struct {
	// Params are the recorder configuration parameters
	Params RecorderParams
	// encoder persists finished clips
	encoder Encoder
	// logger reports clip outcomes, encoding failures are logged rather
	// than raised so a recording glitch never halts live monitoring
	logger *zap.Logger
	// preBuffer is the rolling buffer of frames before the trigger
	preBuffer *matRing
	// recording is true while post trigger frames are being captured
	recording bool
	// postFrames are the frames captured after the trigger
	postFrames []gocv.Mat
	// framesRemaining counts down post trigger capture
	framesRemaining int
}

// NewRecorder returns an instance of the Recorder writing finished clips
// through the given encoder
func NewRecorder(encoder Encoder, logger *zap.Logger, p RecorderParams) *Recorder {
	return &Recorder{
		Params:    p,
		encoder:   encoder,
		logger:    logger,
		preBuffer: newMatRing(p.SecondsBefore * p.FPS),
	}
}

// AddFrame feeds one raw frame to the recorder, call it every frame.  While
// idle the frame joins the rolling pre trigger buffer.  While recording it
// joins the post trigger capture, and once that completes the clip is
// encoded and its file path returned.  The empty string means no clip was
// finished this frame.
func (r *Recorder) AddFrame(frame gocv.Mat) string {

	if !r.recording {
		r.preBuffer.Push(frame.Clone())
		return ""
	}

	r.postFrames = append(r.postFrames, frame.Clone())
	r.framesRemaining--

	if r.framesRemaining > 0 {
		return ""
	}

	path := r.saveClip()
	r.recording = false
	r.releasePost()

	return path
}

// OnFallDetected starts post trigger capture.  Calling it while a recording
// is already in progress is a no-op so duplicate detections collapse into
// one clip.
func (r *Recorder) OnFallDetected() {

	if r.recording {
		return
	}

	r.recording = true
	r.framesRemaining = r.Params.SecondsAfter * r.Params.FPS
	r.releasePost()

	r.logger.Info("fall detected, capturing post fall footage",
		zap.Int("seconds_after", r.Params.SecondsAfter))
}

// Recording returns true while post trigger capture is in progress
func (r *Recorder) Recording() bool {
	return r.recording
}

// saveClip concatenates the pre trigger buffer with the post trigger frames
// and hands them to the encoder.  Returns the clip file path, or the empty
// string when encoding failed.
func (r *Recorder) saveClip() string {

	frames := append(r.preBuffer.Slice(), r.postFrames...)

	if len(frames) == 0 {
		r.logger.Warn("no frames buffered, skipping clip")
		return ""
	}

	path, err := r.encoder.Encode(frames, r.Params.FPS)

	if err != nil {
		r.logger.Error("error encoding fall clip", zap.Error(err))
		return ""
	}

	duration := time.Duration(len(frames)) * time.Second / time.Duration(r.Params.FPS)

	r.logger.Info("fall clip saved",
		zap.String("path", path),
		zap.Duration("duration", duration),
		zap.Int("frames", len(frames)))

	return path
}

// releasePost closes and drops any captured post trigger frames
func (r *Recorder) releasePost() {
	for i := range r.postFrames {
		r.postFrames[i].Close()
	}
	r.postFrames = nil
}

// Reset drops all buffered frames and cancels any recording in progress
func (r *Recorder) Reset() {
	r.preBuffer.Clear()
	r.releasePost()
	r.recording = false
	r.framesRemaining = 0
}
