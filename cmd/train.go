package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Compute face encodings from the captured dataset",
	Long: `Run the face extractor over every image in the dataset and replace the
stored encodings. Images without a detectable face are skipped.`,
	Args: cobra.NoArgs,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().Bool("sorted", false, "Process people and images in lexical order")
	trainCmd.Flags().Bool("json", false, "Output as JSON")
	trainCmd.Flags().Bool("verbose", false, "List skipped images")
}

// TrainOutput is the JSON form of a training run.
type TrainOutput struct {
	People     int            `json:"people"`
	Images     int            `json:"images"`
	Encoded    int            `json:"encoded"`
	NoFace     int            `json:"no_face"`
	Unreadable int            `json:"unreadable"`
	PerPerson  map[string]int `json:"per_person"`
	Model      string         `json:"model"`
	Dim        int            `json:"dim"`
	DurationMs int64          `json:"duration_ms"`
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}
	jsonOutput := mustGetBool(cmd, "json")
	verbose := mustGetBool(cmd, "verbose")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := newBackends(cfg)
	defer b.Close()

	svc, err := b.newService(ctx, serviceOptions{extractor: true, encodings: true})
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	opts := attendance.TrainOptions{Sorted: mustGetBool(cmd, "sorted")}
	if !jsonOutput {
		opts.Progress = func(p attendance.TrainProgress) {
			if bar == nil {
				bar = progressbar.NewOptions(p.Total,
					progressbar.OptionSetDescription("Encoding faces"),
					progressbar.OptionShowCount(),
					progressbar.OptionShowIts(),
					progressbar.OptionSetItsString("images"),
					progressbar.OptionShowElapsedTimeOnFinish(),
					progressbar.OptionSetPredictTime(true),
					progressbar.OptionFullWidth(),
				)
			}
			_ = bar.Add(1)
		}
	}

	res, err := svc.Train(ctx, opts)
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}
	if err != nil {
		return explain(err)
	}

	if jsonOutput {
		return outputJSON(TrainOutput{
			People:     res.People,
			Images:     res.Images,
			Encoded:    res.Encoded,
			NoFace:     res.NoFace,
			Unreadable: res.Unreadable,
			PerPerson:  res.PerPerson,
			Model:      res.Model,
			Dim:        res.Dim,
			DurationMs: res.Duration.Milliseconds(),
		})
	}

	if res.Images == 0 {
		fmt.Printf("No images found in %s, saved an empty encoding set\n", cfg.Paths.Dataset)
		return nil
	}

	fmt.Println("Training complete!")
	fmt.Printf("  People:     %d\n", res.People)
	fmt.Printf("  Images:     %d\n", res.Images)
	fmt.Printf("  Encoded:    %d\n", res.Encoded)
	if res.NoFace > 0 {
		fmt.Printf("  No face:    %d\n", res.NoFace)
	}
	if res.Unreadable > 0 {
		fmt.Printf("  Unreadable: %d\n", res.Unreadable)
	}
	fmt.Printf("  Model:      %s (%d dims)\n", res.Model, res.Dim)
	fmt.Printf("  Duration:   %s\n", formatDuration(res.Duration))

	names := make([]string, 0, len(res.PerPerson))
	for name := range res.PerPerson {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("    %-20s %d\n", name, res.PerPerson[name])
	}

	if verbose {
		for _, s := range res.Skipped {
			if s.Err != nil {
				fmt.Printf("  skipped %s (%s): %v\n", s.Path, s.Status, s.Err)
			} else {
				fmt.Printf("  skipped %s (%s)\n", s.Path, s.Status)
			}
		}
	}
	return nil
}
