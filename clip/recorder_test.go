package clip

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// fakeEncoder records the clips handed to it without touching disk
type fakeEncoder struct {
	clips  [][]gocv.Mat
	frames []int
	err    error
}

func (f *fakeEncoder) Encode(frames []gocv.Mat, fps int) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.clips = append(f.clips, frames)
	f.frames = append(f.frames, len(frames))
	return "clips/fall_test.mp4", nil
}

// testFrame returns a small frame the tests can feed the recorder
func testFrame(t *testing.T) gocv.Mat {
	t.Helper()

	m := gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { m.Close() })

	return m
}

// testRecorder builds a recorder with a 3 frame pre buffer and 2 frame post
// capture so tests stay small
func testRecorder(enc Encoder) *Recorder {
	return &Recorder{
		Params:    RecorderParams{SecondsBefore: 3, SecondsAfter: 2, FPS: 1},
		encoder:   enc,
		logger:    zap.NewNop(),
		preBuffer: newMatRing(3),
	}
}

func TestRecorderCapturesClip(t *testing.T) {

	enc := &fakeEncoder{}
	r := testRecorder(enc)
	defer r.Reset()

	frame := testFrame(t)

	// more pre trigger frames than the buffer holds, the oldest roll off
	for i := 0; i < 5; i++ {
		assert.Empty(t, r.AddFrame(frame))
	}

	r.OnFallDetected()
	require.True(t, r.Recording())

	// first post trigger frame, capture not complete
	assert.Empty(t, r.AddFrame(frame))

	// second post trigger frame completes the clip
	path := r.AddFrame(frame)
	assert.Equal(t, "clips/fall_test.mp4", path)
	assert.False(t, r.Recording())

	// clip is the 3 buffered frames plus the 2 captured ones
	require.Len(t, enc.frames, 1)
	assert.Equal(t, 5, enc.frames[0])
}

func TestRecorderDuplicateTriggerIgnored(t *testing.T) {

	enc := &fakeEncoder{}
	r := testRecorder(enc)
	defer r.Reset()

	frame := testFrame(t)

	r.AddFrame(frame)
	r.OnFallDetected()
	r.AddFrame(frame)

	// second trigger mid recording must not restart the countdown
	r.OnFallDetected()

	path := r.AddFrame(frame)
	assert.NotEmpty(t, path, "countdown restarted by duplicate trigger")

	require.Len(t, enc.frames, 1)
	assert.Equal(t, 3, enc.frames[0])
}

func TestRecorderEncodeFailureYieldsNoPath(t *testing.T) {

	enc := &fakeEncoder{err: errors.New("disk full")}
	r := testRecorder(enc)
	defer r.Reset()

	frame := testFrame(t)

	r.AddFrame(frame)
	r.OnFallDetected()
	r.AddFrame(frame)

	// the failure is logged, not raised, and monitoring continues
	assert.Empty(t, r.AddFrame(frame))
	assert.False(t, r.Recording())

	// the recorder is usable again afterwards
	enc.err = nil
	r.OnFallDetected()
	r.AddFrame(frame)
	assert.NotEmpty(t, r.AddFrame(frame))
}

func TestRecorderReset(t *testing.T) {

	enc := &fakeEncoder{}
	r := testRecorder(enc)

	frame := testFrame(t)

	for i := 0; i < 3; i++ {
		r.AddFrame(frame)
	}
	r.OnFallDetected()
	r.AddFrame(frame)

	r.Reset()

	assert.False(t, r.Recording())
	assert.Equal(t, 0, r.preBuffer.Len())

	// a clip after reset only contains frames added after it
	r.AddFrame(frame)
	r.OnFallDetected()
	r.AddFrame(frame)
	r.AddFrame(frame)

	require.Len(t, enc.frames, 1)
	assert.Equal(t, 3, enc.frames[0])
}
