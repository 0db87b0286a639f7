package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"attendance/internal/app"
	"attendance/internal/model"
	"attendance/internal/repository"
)

var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "Print today's attendance and unauthorized access summary",
	RunE:  runToday,
}

func init() {
	rootCmd.AddCommand(todayCmd)
	todayCmd.Flags().String("date", "", "Day to print (YYYY-MM-DD), defaults to today")
}

func runToday(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	dayKey := mustGetString(cmd, "date")
	if dayKey == "" {
		dayKey = model.DayKey(time.Now(), loc)
	} else if _, err := time.Parse(model.DayKeyLayout, dayKey); err != nil {
		return fmt.Errorf("invalid --date %q: %w", dayKey, err)
	}

	gw, err := app.OpenGateway(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer gw.Close()

	marks, err := gw.Attendance.ListForDay(cmd.Context(), dayKey)
	if err != nil {
		return err
	}
	events, err := gw.Unauthorized.ListForDay(cmd.Context(), dayKey)
	if err != nil {
		return err
	}
	analytics, err := gw.Analytics.Get(cmd.Context(), dayKey)
	if errors.Is(err, repository.ErrNotFound) {
		analytics = &model.DailyAnalytics{DayKey: dayKey}
	} else if err != nil {
		return err
	}

	printDay(cmd.OutOrStdout(), dayKey, marks, events, analytics, loc)
	return nil
}

func printDay(w io.Writer, dayKey string, marks []model.AttendanceMark, events []model.UnauthorizedEvent, analytics *model.DailyAnalytics, loc *time.Location) {
	fmt.Fprintf(w, "Attendance for %s: %d present\n", dayKey, len(marks))
	for _, m := range marks {
		fmt.Fprintf(w, "  %s  %-24s camera %d  confidence %.2f\n",
			m.Timestamp.In(loc).Format("15:04:05"), m.Identity, m.Camera, m.Confidence)
	}

	fmt.Fprintf(w, "Unauthorized access: %d\n", len(events))
	for _, e := range events {
		ref := e.ImageReference
		if ref == "" {
			ref = "(no snapshot)"
		}
		fmt.Fprintf(w, "  %s  camera %d  confidence %.2f  %s\n",
			e.Timestamp.In(loc).Format("15:04:05"), e.Camera, e.Confidence, ref)
	}

	if analytics.AttendanceCount > 0 {
		fmt.Fprintf(w, "Average confidence: %.2f\n", analytics.AverageConfidence)
	}
}
