// Package main provides the CLI entrypoint for fallsense.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
	"golang.org/x/image/font"

	fallsense "github.com/sentinelcare/go-fallsense"
	"github.com/sentinelcare/go-fallsense/clip"
	"github.com/sentinelcare/go-fallsense/eventlog"
	"github.com/sentinelcare/go-fallsense/forest"
	"github.com/sentinelcare/go-fallsense/monitor"
	"github.com/sentinelcare/go-fallsense/render"
	"github.com/sentinelcare/go-fallsense/zone"
)

var (
	replayConfig      string
	replayStream      string
	replayVideo       string
	replayMetricsAddr string

	annotateConfig string
	annotateStream string
	annotateVideo  string
	annotateOut    string
	annotateFont   string

	eventsDB    string
	eventsLimit int
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "fallsense",
		Short:         "Fall detection over recorded pose streams",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(newReplayCmd())
	rootCmd.AddCommand(newAnnotateCmd())
	rootCmd.AddCommand(newEventsCmd())

	return rootCmd
}

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Run the detection engine over a recorded keypoint stream",
		Args:  cobra.NoArgs,
		RunE:  runReplayCmd,
	}

	cmd.Flags().StringVar(&replayConfig, "config", "", "yaml config file (required)")
	cmd.Flags().StringVar(&replayStream, "stream", "", "keypoint stream, one JSON frame per line (required)")
	cmd.Flags().StringVar(&replayVideo, "video", "", "matching video file, enables evidence clips")
	cmd.Flags().StringVar(&replayMetricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")

	return cmd
}

func runReplayCmd(_ *cobra.Command, _ []string) error {

	if replayConfig == "" || replayStream == "" {
		return fmt.Errorf("--config and --stream are required")
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := monitor.LoadConfig(replayConfig)
	if err != nil {
		return err
	}

	scorer, err := loadScorer(&cfg)
	if err != nil {
		return err
	}

	opts := monitor.SessionOpts{Logger: logger}

	if cfg.Zone != nil {
		z, err := zone.New(cfg.Zone.Points, cfg.Zone.MinCoverage)
		if err != nil {
			return err
		}
		opts.Zone = z
	}

	if cfg.EventDB != "" {
		store, err := eventlog.Open(cfg.EventDB)
		if err != nil {
			return err
		}
		defer store.Close()
		opts.Store = store
	}

	if replayVideo != "" && cfg.ClipDir != "" {
		encoder, err := clip.NewVideoEncoder(cfg.ClipDir)
		if err != nil {
			return err
		}
		opts.Recorder = clip.NewRecorder(encoder, logger, cfg.RecorderParams())
	}

	if replayMetricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts.Metrics = monitor.NewMetrics(reg)
		go serveMetrics(replayMetricsAddr, reg, logger)
	}

	src, err := openReplaySource(replayStream, replayVideo)
	if err != nil {
		return err
	}
	defer src.Close()

	sess := monitor.NewSession(cfg, scorer, opts)
	defer sess.Close()

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan error, 1)
	go func() {
		done <- sess.Run(ctx, src)
	}()

	falls, nearFalls := 0, 0

	for u := range sess.Updates() {
		if u.Result.RFStatus == fallsense.RFFall {
			falls++
		}
		if u.Result.NearFallStatus == fallsense.NearFall {
			nearFalls++
		}
		if u.Result.Alert {
			fmt.Printf("frame %d: rf=%s near_fall=%s rules=%v\n",
				u.FrameIndex, u.Result.RFStatus,
				u.Result.NearFallStatus, u.Result.FiredRules)
		}
		if u.ClipPath != "" {
			fmt.Printf("frame %d: clip saved to %s\n", u.FrameIndex, u.ClipPath)
		}
	}

	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	fmt.Printf("falls: %d  near falls: %d\n", falls, nearFalls)

	return nil
}

func newAnnotateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Render skeleton and status overlays onto a video",
		Args:  cobra.NoArgs,
		RunE:  runAnnotateCmd,
	}

	cmd.Flags().StringVar(&annotateConfig, "config", "", "yaml config file (required)")
	cmd.Flags().StringVar(&annotateStream, "stream", "", "keypoint stream matching the video (required)")
	cmd.Flags().StringVar(&annotateVideo, "video", "", "input video file (required)")
	cmd.Flags().StringVar(&annotateOut, "out", "annotated.mp4", "output video file")
	cmd.Flags().StringVar(&annotateFont, "font", "", "TTF font for non Latin overlay text")

	return cmd
}

func runAnnotateCmd(_ *cobra.Command, _ []string) error {

	if annotateConfig == "" || annotateStream == "" || annotateVideo == "" {
		return fmt.Errorf("--config, --stream and --video are required")
	}

	cfg, err := monitor.LoadConfig(annotateConfig)
	if err != nil {
		return err
	}

	scorer, err := loadScorer(&cfg)
	if err != nil {
		return err
	}

	pipeline := fallsense.NewPipeline(scorer, nil, cfg.PipelineParams())
	defer pipeline.Close()

	capture, err := gocv.VideoCaptureFile(annotateVideo)
	if err != nil {
		return fmt.Errorf("failed to open video: %w", err)
	}
	defer capture.Close()

	src, err := monitor.OpenJSONL(annotateStream)
	if err != nil {
		return err
	}
	defer src.Close()

	width := int(capture.Get(gocv.VideoCaptureFrameWidth))
	height := int(capture.Get(gocv.VideoCaptureFrameHeight))

	fps := capture.Get(gocv.VideoCaptureFPS)
	if fps <= 0 {
		fps = float64(cfg.FPS)
	}

	writer, err := gocv.VideoWriterFile(annotateOut, "mp4v", fps,
		width, height, true)
	if err != nil {
		return fmt.Errorf("failed to open output video: %w", err)
	}
	defer writer.Close()

	hershey := render.DefaultFont()

	var face font.Face
	if annotateFont != "" {
		face, err = render.LoadTTF(annotateFont, 24)
		if err != nil {
			return err
		}
	}

	img := gocv.NewMat()
	defer img.Close()

	frames := 0

	for {
		if ok := capture.Read(&img); !ok || img.Empty() {
			break
		}

		sample, err := src.Next()

		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return err
		}

		result, err := pipeline.Process(sample.Keypoints)
		if err != nil {
			return err
		}

		if sample.Keypoints == nil {
			render.NoPoseBanner(&img, hershey)
		} else {
			render.Skeleton(&img, sample.Keypoints, 2)
			if face != nil {
				if err := render.BannerTTF(&img, result, face); err != nil {
					return err
				}
			} else {
				render.Banner(&img, result, hershey)
			}
		}

		if err := writer.Write(img); err != nil {
			return fmt.Errorf("failed to write output frame: %w", err)
		}

		frames++
	}

	fmt.Printf("wrote %d annotated frames to %s\n", frames, annotateOut)

	return nil
}

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recent events from the event log",
		Args:  cobra.NoArgs,
		RunE:  runEventsCmd,
	}

	cmd.Flags().StringVar(&eventsDB, "db", "", "event history database (required)")
	cmd.Flags().IntVar(&eventsLimit, "limit", 20, "number of events to show")

	return cmd
}

func runEventsCmd(cmd *cobra.Command, _ []string) error {

	if eventsDB == "" {
		return fmt.Errorf("--db is required")
	}

	store, err := eventlog.Open(eventsDB)
	if err != nil {
		return err
	}
	defer store.Close()

	events, err := store.Recent(eventsLimit)
	if err != nil {
		return err
	}

	if len(events) == 0 {
		fmt.Println("no events recorded")
		return nil
	}

	for _, ev := range events {
		line := fmt.Sprintf("%s  %-10s", ev.Time.Format(time.RFC3339), ev.Kind)
		if len(ev.Rules) > 0 {
			line += fmt.Sprintf("  rules=%v", ev.Rules)
		}
		if ev.ClipPath != "" {
			line += fmt.Sprintf("  clip=%s", ev.ClipPath)
		}
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}

	return nil
}

// loadScorer loads the trained forest, resolving an unset config threshold
// to the threshold stored in the artifact
func loadScorer(cfg *monitor.Config) (fallsense.Scorer, error) {

	f, err := forest.Load(cfg.Model)
	if err != nil {
		return nil, err
	}

	if cfg.Threshold == 0 {
		cfg.Threshold = f.Threshold
	}

	return f, nil
}

// serveMetrics exposes the session metrics over HTTP
func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) {

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg,
		promhttp.HandlerOpts{}))

	logger.Info("serving metrics", zap.String("addr", addr))

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server failed", zap.Error(err))
	}
}

// videoSource pairs a keypoint stream with the raw frames of the matching
// video so the session can capture evidence clips
type videoSource struct {
	keypoints *monitor.JSONLSource
	capture   *gocv.VideoCapture
	frame     gocv.Mat
}

func openReplaySource(streamPath, videoPath string) (monitor.Source, error) {

	keypoints, err := monitor.OpenJSONL(streamPath)
	if err != nil {
		return nil, err
	}

	if videoPath == "" {
		return keypoints, nil
	}

	capture, err := gocv.VideoCaptureFile(videoPath)
	if err != nil {
		keypoints.Close()
		return nil, fmt.Errorf("failed to open video: %w", err)
	}

	return &videoSource{
		keypoints: keypoints,
		capture:   capture,
		frame:     gocv.NewMat(),
	}, nil
}

// Next returns the next keypoint frame together with its video frame.  The
// video running out before the keypoint stream is not an error, later
// samples just carry no image.
func (v *videoSource) Next() (monitor.Sample, error) {

	sample, err := v.keypoints.Next()
	if err != nil {
		return monitor.Sample{}, err
	}

	if ok := v.capture.Read(&v.frame); ok && !v.frame.Empty() {
		sample.Image = v.frame
		sample.HasImage = true
	}

	return sample, nil
}

func (v *videoSource) Close() error {
	v.frame.Close()
	v.capture.Close()
	return v.keypoints.Close()
}
