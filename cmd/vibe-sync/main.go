// Package main provides the vibe-sync command-line tool.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var cfgFile string

func main() {
	os.Exit(run())
}

func run() int {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if _, ok := err.(usageError); ok {
			return ExitUsage
		}
		return ExitError
	}
	return ExitSuccess
}

// usageError marks errors caused by bad arguments.
type usageError struct{ error }

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vibe-sync",
		Short: "Multi-genome coordinate synchronization",
		Long: `vibe-sync builds shared reference, native and meta-genome coordinates for
every genome of a VCF and translates positions between them.`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cobra.OnInitialize(initConfig)
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.vibe-sync.yaml)")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	viper.BindPFlag("log.level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(newBuildCmd())
	root.AddCommand(newTranslateCmd())
	root.AddCommand(newBuildsCmd())
	root.AddCommand(newConfigCmd())
	return root
}

// initConfig reads the config file and VIBESYNC_* environment variables.
func initConfig() {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
		viper.SetConfigName(".vibe-sync")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("VIBESYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			fmt.Fprintf(os.Stderr, "Warning: could not read config %s: %v\n", cfgFile, err)
		}
	}
}

func setDefaults() {
	viper.SetDefault("workers", 0)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("session.size", 8)
	viper.SetDefault("vcf.split_haplotypes", false)
	viper.SetDefault("duckdb.path", "")
	if dir, err := os.UserCacheDir(); err == nil {
		viper.SetDefault("cache.dir", filepath.Join(dir, "vibe-sync"))
	}
}

// loggerFromConfig builds the logger selected by log.level and
// log.development.
func loggerFromConfig() (*zap.Logger, error) {
	return newLogger(viper.GetString("log.level"), viper.GetBool("log.development"))
}
