// Package main implements weatherctl, a thin administrative CLI over the
// weather history archive's storage backends: a persistent --config flag,
// environment variable binding through Viper, and one RunE func per
// subcommand.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rerupp/weatherhist/backend"
	"github.com/rerupp/weatherhist/backend/archivebackend"
	"github.com/rerupp/weatherhist/backend/documentbackend"
	"github.com/rerupp/weatherhist/backend/hybridbackend"
	"github.com/rerupp/weatherhist/backend/normalizedbackend"
	"github.com/rerupp/weatherhist/datadir"
	"github.com/rerupp/weatherhist/internal/logging"
	"github.com/rerupp/weatherhist/model"
)

var cfgFile string

var log = logging.With("weatherctl")

var rootCmd = &cobra.Command{
	Use:   "weatherctl",
	Short: "administrative CLI for a weather history archive",
	Long: `weatherctl exercises the weather history archive's storage backends:
initializing a database variant, loading and reloading histories from
archives, reporting storage accounting, and migrating legacy DarkSky
archives into canonical form.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.weatherctl.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "weather data directory (default: $WEATHER_DATA or ./weather_data)")
	rootCmd.PersistentFlags().String("variant", "", "database variant: hybrid, document, or normalize (default: archive-only)")
	rootCmd.PersistentFlags().Int("workers", 4, "loader worker count")

	viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	viper.BindPFlag("variant", rootCmd.PersistentFlags().Lookup("variant"))
	viper.BindPFlag("workers", rootCmd.PersistentFlags().Lookup("workers"))
}

// initConfig wires Viper's config-file discovery and WEATHER_-prefixed
// environment variable mapping, giving flags the usual
// flag > env > config-file > default precedence.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".weatherctl")
	}
	viper.SetEnvPrefix("WEATHER")
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("using config file:", viper.ConfigFileUsed())
	}
}

// openDir resolves the weather data directory from --data-dir/$WEATHER_DATA
// and ensures it exists.
func openDir() (*datadir.Directory, error) {
	dir, err := datadir.New(viper.GetString("data_dir"))
	if err != nil {
		return nil, err
	}
	return dir, dir.EnsureRoot()
}

// openBackend constructs the Backend named by --variant, defaulting to the
// archive-only strategy when unset.
func openBackend(dir *datadir.Directory, compress bool) (backend.Backend, error) {
	switch model.DbVariant(viper.GetString("variant")) {
	case model.DbVariantHybrid:
		return hybridbackend.New(dir)
	case model.DbVariantDocument:
		return documentbackend.New(dir, compress)
	case model.DbVariantNormalized:
		return normalizedbackend.New(dir)
	case "":
		return archivebackend.New(dir)
	default:
		return nil, fmt.Errorf("unknown --variant %q", viper.GetString("variant"))
	}
}

// dbBackend resolves --variant and requires it to be one of the three
// database-backed strategies, for commands with no archive-only meaning.
func dbBackend(dir *datadir.Directory, compress bool) (backend.DBBackend, error) {
	b, err := openBackend(dir, compress)
	if err != nil {
		return nil, err
	}
	db, ok := b.(backend.DBBackend)
	if !ok {
		return nil, fmt.Errorf("--variant must be hybrid, document, or normalize for this command")
	}
	return db, nil
}
