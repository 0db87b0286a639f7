package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"attendance/internal/app"
	"attendance/internal/model"
	"attendance/internal/service/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the schema and backfill unauthorized events from stored snapshots",
	Long: `Migrate opens the database (creating tables when needed) and scans the
unauthorized snapshot directory. Every snapshot without a matching event is
recorded with unknown confidence and the daily analytics are refreshed.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().String("images", "", "Snapshot directory (default: UNAUTHORIZED_DIR)")
	migrateCmd.Flags().Bool("dry-run", false, "Only report what would be inserted")
}

type snapshotFile struct {
	path   string
	camera model.CameraID
	taken  time.Time
}

// scanSnapshots groups parseable snapshot files in dir by day key.
func scanSnapshots(dir string, loc *time.Location) (map[string][]snapshotFile, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	byDay := make(map[string][]snapshotFile)
	var skipped []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".jpg" {
			continue
		}
		camera, taken, err := storage.ParseSnapshotName(entry.Name(), loc)
		if err != nil {
			skipped = append(skipped, entry.Name())
			continue
		}
		day := model.DayKey(taken, loc)
		byDay[day] = append(byDay[day], snapshotFile{
			path:   filepath.Join(dir, entry.Name()),
			camera: camera,
			taken:  taken,
		})
	}
	return byDay, skipped, nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	dir := mustGetString(cmd, "images")
	if dir == "" {
		dir = cfg.UnauthorizedDirectory
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	gw, err := app.OpenGateway(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer gw.Close()

	byDay, skipped, err := scanSnapshots(dir, loc)
	if err != nil {
		return err
	}
	for _, name := range skipped {
		log.Warning("⚠️  Skipping %s: not a snapshot name", name)
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	pending := make(map[string][]snapshotFile, len(days))
	total := 0
	for _, day := range days {
		existing, err := gw.Unauthorized.ListForDay(ctx, day)
		if err != nil {
			return err
		}
		known := make(map[string]bool, len(existing))
		for _, e := range existing {
			known[e.ImageReference] = true
		}
		for _, f := range byDay[day] {
			if !known[f.path] {
				pending[day] = append(pending[day], f)
			}
		}
		if n := len(pending[day]); n > 0 {
			fmt.Fprintf(out, "%s: %d snapshot(s) to record\n", day, n)
			total += n
		}
	}

	if dryRun || total == 0 {
		fmt.Fprintf(out, "%d snapshot(s) to record, skipped %d file(s)\n", total, len(skipped))
		return nil
	}

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription("Recording snapshots"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	for _, day := range days {
		if len(pending[day]) == 0 {
			continue
		}
		for _, f := range pending[day] {
			event := model.NewUnauthorizedEvent(f.camera, 0, f.path, f.taken, day)
			if err := gw.Unauthorized.Insert(ctx, &event); err != nil {
				return fmt.Errorf("failed to insert %s: %w", f.path, err)
			}
			bar.Add(1)
		}
		if _, err := gw.Analytics.Refresh(ctx, day); err != nil {
			return err
		}
	}
	bar.Finish()

	fmt.Fprintf(out, "\n✅ Recorded %d snapshot(s)", total)
	if len(skipped) > 0 {
		fmt.Fprintf(out, ", skipped %d file(s)", len(skipped))
	}
	fmt.Fprintln(out)
	return nil
}
