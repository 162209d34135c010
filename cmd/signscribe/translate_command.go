package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"signscribe/internal/camera"
	"signscribe/internal/capture"
	"signscribe/internal/logging"
	"signscribe/internal/predict"
)

func newTranslateCommand(ctx *commandContext) *cobra.Command {
	var framesDir string
	var endpoint string
	var device string
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate signs from camera frames in real time",
		Long: "Reads the newest frame from a directory an external grabber keeps updated,\n" +
			"sends it to the prediction endpoint on a fixed interval and prints each\n" +
			"stable sign as it is recognised. Stop with Ctrl+C.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.log()
			if strings.TrimSpace(framesDir) == "" {
				framesDir = cfg.Capture.FrameDir
			}
			if strings.TrimSpace(framesDir) == "" {
				return errors.New("no frame source: set capture.frame_dir or pass --frames")
			}
			if strings.TrimSpace(endpoint) == "" {
				endpoint = cfg.Capture.Endpoint
			}
			if strings.TrimSpace(device) == "" {
				device = cfg.Capture.Device
			}

			runCtx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if duration > 0 {
				runCtx, cancel = context.WithTimeout(runCtx, duration)
				defer cancel()
			}

			timeout := time.Duration(cfg.Capture.RequestTimeoutMs) * time.Millisecond
			client := predict.NewClient(endpoint, uuid.NewString(), timeout)
			view := newTranslateView(cmd.OutOrStdout())

			loop, err := capture.NewLoop(capture.NewDirSource(framesDir, logger), client, capture.Options{
				Interval:       time.Duration(cfg.Capture.IntervalMillis) * time.Millisecond,
				RequestTimeout: timeout,
				HistorySize:    cfg.Capture.HistorySize,
				Threshold:      cfg.Capture.ConfidenceThreshold,
				JPEGQuality:    cfg.Capture.JPEGQuality,
				OnStable:       view.stable,
				OnUpdate:       view.update,
			}, logger)
			if err != nil {
				return err
			}

			if device != "" {
				if err := camera.Available(device); err != nil {
					logging.WarnWithContext(logger, "camera device not found", "camera_unavailable",
						logging.String("device", device),
						logging.Error(err),
						logging.String(logging.FieldErrorHint, "frames are still read from the frame directory"),
					)
				}
				monitor := camera.NewMonitor(device, logger, func(ev camera.Event) {
					if !ev.Removed() {
						return
					}
					if err := loop.Fail(fmt.Sprintf("Camera unavailable: %s removed", ev.Device)); err != nil {
						logger.Debug("frame source close failed", logging.Error(err))
					}
					cancel()
				})
				if err := monitor.Start(runCtx); err != nil {
					logger.Debug("camera hotplug monitor unavailable", logging.Error(err))
				} else {
					defer monitor.Stop()
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Translating frames from %s via %s\n", framesDir, client.Endpoint())
			if err := loop.Start(runCtx); err != nil {
				return err
			}
			<-runCtx.Done()
			stopErr := loop.Stop()
			view.finish(loop.Snapshot())
			return stopErr
		},
	}

	cmd.Flags().StringVar(&framesDir, "frames", "", "Directory holding the latest camera frame")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "Prediction endpoint URL")
	cmd.Flags().StringVar(&device, "device", "", "Camera device to watch for removal")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long (0 runs until interrupted)")
	return cmd
}

// translateView renders loop progress. On a terminal the status line is
// redrawn in place; otherwise only status changes are printed.
type translateView struct {
	out      io.Writer
	terminal bool

	mu         sync.Mutex
	lastStatus string
}

func newTranslateView(out io.Writer) *translateView {
	terminal := false
	if f, ok := out.(*os.File); ok {
		terminal = isatty.IsTerminal(f.Fd())
	}
	return &translateView{out: out, terminal: terminal}
}

func (v *translateView) stable(label string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.terminal {
		fmt.Fprint(v.out, "\r\033[K")
	}
	fmt.Fprintf(v.out, "» %s\n", label)
}

func (v *translateView) update(snap capture.Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.terminal {
		fmt.Fprintf(v.out, "\r\033[K[%s] %s", snap.State, snap.Status)
		return
	}
	if snap.Status != v.lastStatus {
		v.lastStatus = snap.Status
		fmt.Fprintf(v.out, "[%s] %s\n", snap.State, snap.Status)
	}
}

func (v *translateView) finish(snap capture.Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.terminal {
		fmt.Fprint(v.out, "\r\033[K")
	}
	if len(snap.Transcript) == 0 {
		fmt.Fprintln(v.out, "No signs recognised")
		return
	}
	fmt.Fprintf(v.out, "Transcript: %s\n", strings.Join(snap.Transcript, " "))
}
