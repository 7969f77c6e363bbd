package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
)

var attendCmd = &cobra.Command{
	Use:   "attend",
	Short: "Recognize faces from the webcam and mark attendance",
	Long: `Load the trained encodings, open the camera and label every face in the
preview. Each recognized person is recorded in the ledger at most once per day.
Press the stop key (q by default) in the preview window to quit.`,
	Args: cobra.NoArgs,
	RunE: runAttend,
}

func init() {
	rootCmd.AddCommand(attendCmd)

	addMatchFlags(attendCmd)
	attendCmd.Flags().Int("max-frames", 0, "Stop after this many frames (0 = until stopped)")
	attendCmd.Flags().Bool("json", false, "Output the run summary as JSON")
	addVideoFlags(attendCmd)
}

// AttendOutput is the JSON form of a recognition run.
type AttendOutput struct {
	RunID    string                      `json:"run_id"`
	Reason   string                      `json:"reason"`
	Frames   int                         `json:"frames"`
	Faces    int                         `json:"faces"`
	Recorded []database.AttendanceRecord `json:"recorded"`
}

func addMatchFlags(cmd *cobra.Command) {
	cmd.Flags().String("tie-break", "", "Match policy when several encodings are within tolerance: first or closest")
	cmd.Flags().Float64("tolerance", 0, "Maximum face distance for a match (default from MATCH_TOLERANCE, else 0.6 euclidean / 0.5 cosine)")
	cmd.Flags().String("metric", "", "Distance metric: euclidean or cosine (default from MATCH_METRIC, else by extractor)")
}

// applyMatchFlags overrides the matcher settings from the command line. A
// --metric without --tolerance or MATCH_TOLERANCE uses that metric's default.
func applyMatchFlags(cmd *cobra.Command, cfg *config.Config) {
	if v := mustGetString(cmd, "tie-break"); v != "" {
		cfg.Recognition.TieBreak = v
	}
	if v := mustGetFloat64(cmd, "tolerance"); v > 0 {
		cfg.Recognition.SetTolerance(v)
	}
	if v := mustGetString(cmd, "metric"); v != "" {
		cfg.Recognition.SetMetric(v)
	}
}

func runAttend(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	applyMatchFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	jsonOutput := mustGetBool(cmd, "json")
	video := readVideoFlags(cmd, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := newBackends(cfg)
	defer b.Close()

	svc, err := b.newService(ctx, serviceOptions{
		extractor: true,
		encodings: true,
		ledger:    true,
		video:     &video,
	})
	if err != nil {
		return err
	}

	opts := attendance.RecognizeOptions{MaxFrames: mustGetInt(cmd, "max-frames")}
	if !jsonOutput {
		faces := 0
		opts.OnFrame = func(r attendance.FrameReport) {
			faces += len(r.Faces)
			for _, f := range r.Faces {
				if f.Recorded {
					fmt.Printf("  %s  marked present: %s\n", time.Now().Format(database.TimeLayout), f.Match.Name)
				}
			}
			if r.Seq > 0 && r.Seq%constants.ProgressEvery == 0 {
				fmt.Printf("  frames: %d, faces: %d\n", r.Seq, faces)
			}
		}
		fmt.Printf("Recognizing with %s tolerance %.2f (%s tie-break)\n",
			cfg.Recognition.Metric, cfg.Recognition.Tolerance, cfg.Recognition.TieBreak)
	}

	start := time.Now()
	res, err := svc.Recognize(ctx, opts)
	if err != nil {
		return explain(err)
	}

	if jsonOutput {
		recorded := res.Recorded
		if recorded == nil {
			recorded = []database.AttendanceRecord{}
		}
		return outputJSON(AttendOutput{
			RunID:    res.RunID,
			Reason:   string(res.Reason),
			Frames:   res.Frames,
			Faces:    res.Faces,
			Recorded: recorded,
		})
	}

	fmt.Printf("\nStopped (%s) after %d frames in %s\n", res.Reason, res.Frames, formatDuration(time.Since(start)))
	if len(res.Recorded) == 0 {
		fmt.Println("No new attendance recorded")
		return nil
	}
	fmt.Printf("Recorded %d:\n", len(res.Recorded))
	for _, rec := range res.Recorded {
		fmt.Printf("  %-20s %s %s\n", rec.Name, rec.Date, rec.Time)
	}
	return nil
}
