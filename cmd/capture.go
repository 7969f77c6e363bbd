package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
)

var captureCmd = &cobra.Command{
	Use:   "capture <name>",
	Short: "Capture face images of a person from the webcam",
	Long: `Open the camera and save frames to dataset/<name>/0.jpg, 1.jpg, ...
Press the stop key (q by default) in the preview window to end early.
Re-capturing a person overwrites images with the same index.`,
	Args: cobra.ExactArgs(1),
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().Int("frames", 0, "Number of images to capture (default from CAPTURE_FRAMES)")
	addVideoFlags(captureCmd)
}

func runCapture(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	frames := mustGetInt(cmd, "frames")
	if frames <= 0 {
		frames = cfg.Camera.Frames
	}
	video := readVideoFlags(cmd, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := newBackends(cfg)
	defer b.Close()

	svc, err := b.newService(ctx, serviceOptions{video: &video})
	if err != nil {
		return err
	}

	fmt.Printf("Capturing %d images of %s into %s\n", frames, args[0], cfg.Paths.Dataset)
	res, err := svc.Capture(ctx, attendance.CaptureInput{Name: args[0], Frames: frames})
	if err != nil {
		if res != nil && len(res.Paths) > 0 {
			fmt.Printf("Saved %d of %d images for %s before the error:\n", len(res.Paths), res.Requested, res.Name)
			for _, p := range res.Paths {
				fmt.Printf("  %s\n", p)
			}
		}
		return explain(err)
	}

	switch {
	case res.Exhausted:
		fmt.Printf("Replay ran out: saved %d of %d images for %s\n", len(res.Paths), res.Requested, res.Name)
	case res.Stopped:
		fmt.Printf("Stopped early: saved %d of %d images for %s\n", len(res.Paths), res.Requested, res.Name)
	default:
		fmt.Printf("Face data for %s saved successfully (%d images)\n", res.Name, len(res.Paths))
	}
	if res.FailedReads > 0 {
		fmt.Printf("  Failed camera reads: %d\n", res.FailedReads)
	}
	return nil
}
