package monitor

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	fallsense "github.com/sentinelcare/go-fallsense"
	"github.com/sentinelcare/go-fallsense/clip"
)

// ZoneConfig defines an optional monitored region polygon
type ZoneConfig struct {
	// Points are the polygon corners in normalised [0,1] coordinates
	Points [][2]float64 `yaml:"points"`
	// MinCoverage is the bounding box fraction that must overlap the
	// region for a frame to count
	MinCoverage float64 `yaml:"min_coverage"`
}

// Config carries every tuning knob of the detection engine plus the
// service level settings of a monitoring session
type Config struct {
	// Model is the path to the trained classifier artifact, required
	Model string `yaml:"model"`
	// ClipDir is where evidence clips are written, empty disables
	// clip recording
	ClipDir string `yaml:"clip_dir"`
	// EventDB is the SQLite event history file, empty disables the
	// event log
	EventDB string `yaml:"event_db"`

	// FPS is the frame rate the caller supplies frames at.  The engine
	// counts frames rather than wall clock time, so this must match the
	// real input rate for the various windows to mean what they say.
	FPS int `yaml:"fps"`
	// QueueSize is the bounded result queue capacity, oldest results are
	// dropped when the consumer lags
	QueueSize int `yaml:"queue_size"`

	// WindowSize is the classifier sliding window length in frames
	WindowSize int `yaml:"window_size"`
	// VarianceWindow is the keypoint variance trailing window length
	VarianceWindow int `yaml:"variance_window"`
	// ConfirmationWindows is the consecutive positive frames needed to
	// declare a fall
	ConfirmationWindows int `yaml:"confirmation_windows"`
	// Threshold is the classifier decision threshold.  Zero means use
	// the threshold stored in the model artifact.
	Threshold float64 `yaml:"threshold"`

	// VelocityTrigger through MaxActivityRatio tune the near fall rule
	// machine, see fallsense.NearFallParams
	VelocityTrigger   float64 `yaml:"velocity_trigger"`
	VelocityCalm      float64 `yaml:"velocity_calm"`
	ActivityRatioSit  float64 `yaml:"activity_ratio_sit"`
	RecoveryFrames    int     `yaml:"recovery_frames"`
	MinDropToQualify  float64 `yaml:"min_drop_to_qualify"`
	RecoveryTolerance float64 `yaml:"recovery_tolerance"`
	BaselineFrames    int     `yaml:"baseline_frames"`
	MaxActivityRatio  float64 `yaml:"max_activity_ratio"`

	// SecondsBefore and SecondsAfter bound the evidence clip around a
	// confirmed fall
	SecondsBefore int `yaml:"seconds_before"`
	SecondsAfter  int `yaml:"seconds_after"`

	// Zone optionally restricts detection to a region of the view
	Zone *ZoneConfig `yaml:"zone"`
}

// DefaultConfig returns a Config with every knob at its default
func DefaultConfig() Config {

	engineer := fallsense.DefaultEngineerParams()
	classifier := fallsense.DefaultClassifierParams()
	nearFall := fallsense.DefaultNearFallParams()
	recorder := clip.DefaultRecorderParams()

	return Config{
		FPS:       recorder.FPS,
		QueueSize: 2,

		WindowSize:          engineer.WindowSize,
		VarianceWindow:      engineer.VarianceWindow,
		ConfirmationWindows: classifier.ConfirmationWindows,
		Threshold:           classifier.Threshold,

		VelocityTrigger:   nearFall.VelocityTrigger,
		VelocityCalm:      nearFall.VelocityCalm,
		ActivityRatioSit:  nearFall.ActivityRatioSit,
		RecoveryFrames:    nearFall.RecoveryFrames,
		MinDropToQualify:  nearFall.MinDropToQualify,
		RecoveryTolerance: nearFall.RecoveryTolerance,
		BaselineFrames:    nearFall.BaselineFrames,
		MaxActivityRatio:  nearFall.MaxActivityRatio,

		SecondsBefore: recorder.SecondsBefore,
		SecondsAfter:  recorder.SecondsAfter,
	}
}

// LoadConfig reads a yaml config file over the defaults
func LoadConfig(path string) (Config, error) {

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)

	if err != nil {
		return cfg, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks the configuration is usable
func (c Config) Validate() error {

	if c.Model == "" {
		return fmt.Errorf("model artifact path is required")
	}

	if c.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %d", c.FPS)
	}

	if c.WindowSize <= 0 {
		return fmt.Errorf("window_size must be positive, got %d", c.WindowSize)
	}

	if c.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be positive, got %d", c.QueueSize)
	}

	return nil
}

// PipelineParams converts the config into the engine's parameter structs
func (c Config) PipelineParams() fallsense.PipelineParams {
	return fallsense.PipelineParams{
		Engineer: fallsense.EngineerParams{
			WindowSize:     c.WindowSize,
			VarianceWindow: c.VarianceWindow,
		},
		Classifier: fallsense.ClassifierParams{
			Threshold:           c.Threshold,
			ConfirmationWindows: c.ConfirmationWindows,
		},
		NearFall: fallsense.NearFallParams{
			VelocityTrigger:   c.VelocityTrigger,
			VelocityCalm:      c.VelocityCalm,
			ActivityRatioSit:  c.ActivityRatioSit,
			RecoveryFrames:    c.RecoveryFrames,
			MinDropToQualify:  c.MinDropToQualify,
			RecoveryTolerance: c.RecoveryTolerance,
			BaselineFrames:    c.BaselineFrames,
			MaxActivityRatio:  c.MaxActivityRatio,
		},
	}
}

// RecorderParams converts the config into clip recorder parameters
func (c Config) RecorderParams() clip.RecorderParams {
	return clip.RecorderParams{
		SecondsBefore: c.SecondsBefore,
		SecondsAfter:  c.SecondsAfter,
		FPS:           c.FPS,
	}
}
