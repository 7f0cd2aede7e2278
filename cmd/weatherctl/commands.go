package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rerupp/weatherhist/backend"
	"github.com/rerupp/weatherhist/datadir"
	"github.com/rerupp/weatherhist/migrate"
	"github.com/rerupp/weatherhist/model"
	"github.com/rerupp/weatherhist/registry"
	"github.com/rerupp/weatherhist/version"
)

func init() {
	rootCmd.AddCommand(initCmd, addLocationCmd, locationsCmd, datesCmd, summaryCmd, dailyCmd, statCmd, dropCmd, reloadCmd, migrateCmd, versionCmd)

	initCmd.Flags().Bool("compress", false, "enable Snappy compression (document variant only)")

	addLocationCmd.Flags().String("alias", "", "location alias")
	addLocationCmd.Flags().String("name", "", "location display name")
	addLocationCmd.Flags().String("lat", "", "latitude")
	addLocationCmd.Flags().String("long", "", "longitude")
	addLocationCmd.Flags().String("tz", "", "IANA timezone")

	dailyCmd.Flags().String("alias", "", "location alias")
	dailyCmd.Flags().String("from", "", "range start, YYYY-MM-DD")
	dailyCmd.Flags().String("to", "", "range end, YYYY-MM-DD")

	migrateCmd.Flags().String("src", "", "legacy DarkSky data directory")
	migrateCmd.Flags().String("dst", "", "target canonical data directory")
	migrateCmd.Flags().String("alias", "", "location alias to migrate")
	migrateCmd.Flags().Bool("retain", false, "append to an existing target archive instead of replacing it")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "initialize the data directory and the selected database variant",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := openDir()
		if err != nil {
			return err
		}
		compress, _ := cmd.Flags().GetBool("compress")
		b, err := openBackend(dir, compress)
		if err != nil {
			return err
		}
		if db, ok := b.(backend.DBBackend); ok {
			info, err := db.Stat()
			if err != nil {
				return err
			}
			fmt.Printf("initialized %s variant at %s\n", info.Config.Variant, dir.Root())
			return nil
		}
		fmt.Printf("initialized archive-only store at %s\n", dir.Root())
		return nil
	},
}

var addLocationCmd = &cobra.Command{
	Use:   "add-location",
	Short: "register a new location in the catalogue",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := openDir()
		if err != nil {
			return err
		}
		b, err := openBackend(dir, false)
		if err != nil {
			return err
		}
		alias, _ := cmd.Flags().GetString("alias")
		name, _ := cmd.Flags().GetString("name")
		lat, _ := cmd.Flags().GetString("lat")
		long, _ := cmd.Flags().GetString("long")
		tz, _ := cmd.Flags().GetString("tz")
		loc := model.Location{Name: name, Alias: alias, Latitude: lat, Longitude: long, TZ: tz}
		if err := b.AddLocation(loc); err != nil {
			return err
		}
		fmt.Printf("added location %s (%s)\n", loc.Name, loc.Alias)
		return nil
	},
}

var locationsCmd = &cobra.Command{
	Use:   "locations [pattern...]",
	Short: "list locations matching the given patterns (default: all)",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := openDir()
		if err != nil {
			return err
		}
		b, err := openBackend(dir, false)
		if err != nil {
			return err
		}
		locs, err := b.Locations(registry.Criteria{Filters: args, SortByName: true})
		if err != nil {
			return err
		}
		for _, loc := range locs {
			fmt.Printf("%-20s %-30s %s\n", loc.Alias, loc.Name, loc.TZ)
		}
		return nil
	},
}

var datesCmd = &cobra.Command{
	Use:   "dates [pattern...]",
	Short: "list covered date ranges per matching location",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := openDir()
		if err != nil {
			return err
		}
		b, err := openBackend(dir, false)
		if err != nil {
			return err
		}
		out, err := b.HistoryDates(registry.Criteria{Filters: args, SortByName: true})
		if err != nil {
			return err
		}
		for _, hd := range out {
			fmt.Printf("%s:\n", hd.Alias)
			for _, r := range hd.Ranges {
				fmt.Printf("  %s .. %s\n", r.From, r.To)
			}
		}
		return nil
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary [pattern...]",
	Short: "report per-location storage accounting",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := openDir()
		if err != nil {
			return err
		}
		b, err := openBackend(dir, false)
		if err != nil {
			return err
		}
		summaries, err := b.HistorySummaries(registry.Criteria{Filters: args, SortByName: true})
		if err != nil {
			return err
		}
		for _, s := range summaries {
			fmt.Printf("%-20s count=%-6d raw=%-10d store=%-10d overall=%d\n", s.Alias, s.Count, s.RawSize, s.StoreSize, s.OverallSize)
		}
		return nil
	},
}

var dailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "print a location's daily histories within a date range",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := openDir()
		if err != nil {
			return err
		}
		b, err := openBackend(dir, false)
		if err != nil {
			return err
		}
		alias, _ := cmd.Flags().GetString("alias")
		fromS, _ := cmd.Flags().GetString("from")
		toS, _ := cmd.Flags().GetString("to")
		from, err := model.ParseDate(fromS)
		if err != nil {
			return err
		}
		to, err := model.ParseDate(toS)
		if err != nil {
			return err
		}
		dh, err := b.DailyHistories(alias, model.NewDateRange(from, to))
		if err != nil {
			return err
		}
		for _, h := range dh.Histories {
			fmt.Printf("%s high=%v low=%v\n", h.Date, h.TemperatureHigh, h.TemperatureLow)
		}
		return nil
	},
}

var statCmd = &cobra.Command{
	Use:   "stat",
	Short: "report database storage accounting (hybrid/document/normalize only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := openDir()
		if err != nil {
			return err
		}
		db, err := dbBackend(dir, false)
		if err != nil {
			return err
		}
		info, err := db.Stat()
		if err != nil {
			return err
		}
		fmt.Printf("variant=%s compress=%v locations=%d histories=%d file_size=%d\n",
			info.Config.Variant, info.Config.Compress, info.LocationCount, info.HistoryCount, info.FileSize)
		return nil
	},
}

var dropCmd = &cobra.Command{
	Use:   "drop",
	Short: "drop the database tables without touching the archives",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := openDir()
		if err != nil {
			return err
		}
		db, err := dbBackend(dir, false)
		if err != nil {
			return err
		}
		if err := db.Drop(); err != nil {
			return err
		}
		log.Info("dropped database tables")
		return nil
	},
}

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "rebuild the database tables from the archives",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := openDir()
		if err != nil {
			return err
		}
		db, err := dbBackend(dir, false)
		if err != nil {
			return err
		}
		runID := uuid.New().String()
		log.WithField("run_id", runID).Info("starting reload")
		n, err := db.Reload(viper.GetInt("workers"))
		if err != nil {
			return err
		}
		log.WithField("run_id", runID).WithField("reloaded", n).Info("reload complete")
		fmt.Printf("reloaded %d records (run %s)\n", n, runID)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print build and dependency information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.GetBuildInfo()
		fmt.Printf("%s %s (built with %s)\n", info.MainModule, info.MainVersion, info.GoVersion)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "convert a legacy DarkSky archive into the canonical format",
	RunE: func(cmd *cobra.Command, args []string) error {
		src, _ := cmd.Flags().GetString("src")
		dst, _ := cmd.Flags().GetString("dst")
		alias, _ := cmd.Flags().GetString("alias")
		retain, _ := cmd.Flags().GetBool("retain")

		srcDir, err := datadir.New(src)
		if err != nil {
			return err
		}
		dstDir, err := datadir.New(dst)
		if err != nil {
			return err
		}
		if err := dstDir.EnsureRoot(); err != nil {
			return err
		}

		n, err := migrate.Migrate(srcDir, dstDir, model.NormalizedAlias(alias), retain)
		if err != nil {
			return err
		}
		fmt.Printf("migrated %d entries for %s\n", n, alias)
		return nil
	},
}
