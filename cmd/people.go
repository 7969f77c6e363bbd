package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
)

var peopleCmd = &cobra.Command{
	Use:   "people",
	Short: "List enrolled people and their encodings",
	Args:  cobra.NoArgs,
	RunE:  runPeople,
}

func init() {
	rootCmd.AddCommand(peopleCmd)

	peopleCmd.Flags().Bool("json", false, "Output as JSON")
}

// PeopleOutput is the JSON form of the people listing.
type PeopleOutput struct {
	Encodings *attendance.EncodingStatus `json:"encodings"`
	People    []attendance.PersonSummary `json:"people"`
}

func runPeople(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := context.Background()
	b := newBackends(cfg)
	defer b.Close()

	svc, err := b.newService(ctx, serviceOptions{encodings: true})
	if err != nil {
		return err
	}

	status, err := svc.Status(ctx)
	if err != nil {
		return err
	}
	people, err := svc.People(ctx)
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(PeopleOutput{Encodings: status, People: people})
	}

	if status.Trained {
		fmt.Printf("Encodings: %d for %d people (%s, %d dims, trained %s)\n",
			status.Entries, status.People, status.Model, status.Dim, status.TrainedAt.Local().Format("2006-01-02 15:04"))
	} else {
		fmt.Println("Encodings: not trained")
	}

	if len(people) == 0 {
		fmt.Printf("No people enrolled in %s\n", cfg.Paths.Dataset)
		return nil
	}
	fmt.Printf("\n%-20s %8s %10s\n", "NAME", "IMAGES", "ENCODINGS")
	for _, p := range people {
		fmt.Printf("%-20s %8d %10d\n", p.Name, p.Images, p.Encodings)
	}
	return nil
}
