package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/local"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the attendance ledger",
}

var ledgerShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List attendance records",
	Long: `List attendance records, optionally filtered by date and person.
Use --date today for the current day.`,
	Args: cobra.NoArgs,
	RunE: runLedgerShow,
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerShowCmd)

	ledgerShowCmd.Flags().String("date", "", "Only records of this date (YYYY-MM-DD or today)")
	ledgerShowCmd.Flags().String("person", "", "Only records of this person")
	ledgerShowCmd.Flags().Bool("csv", false, "Output as CSV")
	ledgerShowCmd.Flags().Bool("json", false, "Output as JSON")
}

func runLedgerShow(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	filter := database.LedgerFilter{
		Date:   mustGetString(cmd, "date"),
		Person: mustGetString(cmd, "person"),
	}
	if filter.Date == "today" {
		filter.Date = time.Now().Format(database.DateLayout)
	}

	ctx := context.Background()
	b := newBackends(cfg)
	defer b.Close()

	svc, err := b.newService(ctx, serviceOptions{ledger: true})
	if err != nil {
		return err
	}

	records, err := svc.Attendance(ctx, filter)
	if err != nil {
		return err
	}

	switch {
	case mustGetBool(cmd, "csv"):
		return local.WriteCSV(os.Stdout, records)
	case mustGetBool(cmd, "json"):
		if records == nil {
			records = []database.AttendanceRecord{}
		}
		return outputJSON(records)
	}

	if len(records) == 0 {
		fmt.Println("No attendance records found")
		return nil
	}
	fmt.Printf("%-20s %-10s %s\n", "NAME", "DATE", "TIME")
	for _, rec := range records {
		fmt.Printf("%-20s %-10s %s\n", rec.Name, rec.Date, rec.Time)
	}
	fmt.Printf("\n%d record(s)\n", len(records))
	return nil
}
