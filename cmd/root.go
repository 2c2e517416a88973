package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile     string
	casesDir    string
	redisURL    string
	logLevel    string
	nodeID      string
	hashSetPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "galleryd",
	Short: "Per-case image gallery service for forensic cases",
	Long: `Galleryd maintains a drawables database per forensic case: the set of
supported image and video files discovered by ingest, with per-data-source
build status and EXIF/hash-set/tag result caches.

Features:
- Case-scoped controller lifecycle driven by case open/close events
- Event routing for ingest file, artifact and job notifications
- Data source folder cataloging with media type detection
- Redis Streams bridge for multi-node analysis notifications
- Terminal status view with rebuild prompts`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.galleryd.yaml)")
	rootCmd.PersistentFlags().StringVar(&casesDir, "cases-dir", "./data/cases", "Root directory for case storage")
	rootCmd.PersistentFlags().StringVar(&redisURL, "redis", "", "Redis connection URL for multi-node notifications (empty disables)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&nodeID, "node-id", "", "Node identity for multi-node deployments (default hostname)")
	rootCmd.PersistentFlags().StringVar(&hashSetPath, "hash-set", "", "Reference hash set file (sha256,known|known_bad per line)")

	// Bind flags to viper
	viper.BindPFlag("cases.dir", rootCmd.PersistentFlags().Lookup("cases-dir"))
	viper.BindPFlag("redis.url", rootCmd.PersistentFlags().Lookup("redis"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("node.id", rootCmd.PersistentFlags().Lookup("node-id"))
	viper.BindPFlag("ingest.hash_set", rootCmd.PersistentFlags().Lookup("hash-set"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".galleryd" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".galleryd")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	// Set defaults
	viper.SetDefault("cases.dir", "./data/cases")
	viper.SetDefault("redis.url", "")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("node.id", defaultNodeID())
	viper.SetDefault("ingest.hash_set", "")
	viper.SetDefault("gallery.enabled_by_default", true)
	viper.SetDefault("gallery.group_categorization_warning_disabled", false)
}

func defaultNodeID() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}

// GetConfig returns the current configuration values
func GetConfig() Config {
	return Config{
		Cases: CasesConfig{
			Dir: viper.GetString("cases.dir"),
		},
		Redis: RedisConfig{
			URL: viper.GetString("redis.url"),
		},
		Log: LogConfig{
			Level: viper.GetString("log.level"),
		},
		Node: NodeConfig{
			ID: viper.GetString("node.id"),
		},
		Ingest: IngestConfig{
			HashSetPath: viper.GetString("ingest.hash_set"),
		},
	}
}

// Config represents the application configuration
type Config struct {
	Cases  CasesConfig  `mapstructure:"cases"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Log    LogConfig    `mapstructure:"log"`
	Node   NodeConfig   `mapstructure:"node"`
	Ingest IngestConfig `mapstructure:"ingest"`
}

type CasesConfig struct {
	Dir string `mapstructure:"dir"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type NodeConfig struct {
	ID string `mapstructure:"id"`
}

type IngestConfig struct {
	HashSetPath string `mapstructure:"hash_set"`
}
