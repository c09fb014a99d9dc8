/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/rotblauer/fixguard/params"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   params.AppName,
	Short: "Validate GPS positions before they reach navigation",
	Long: `fixguard decides, for every candidate position, whether to let it through.

Candidates come from one or more sources, as flat JSON objects or Signal K deltas.
A candidate is rejected when it falls inside an excluded zone, or when the speed
implied by moving from recently accepted positions is too high.
Everything that is not a position candidate is passed through untouched.

Configuration is read, in increasing precedence, from defaults, a config file
($HOME/.fixguard/config.yaml or --config), FIXGUARD_ environment variables, and flags.
`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setDefaultSlog(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pFlags := rootCmd.PersistentFlags()
	pFlags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.fixguard/config.yaml)")
	pFlags.String("log-level", "info", "log level: debug, info, warn, error")
	pFlags.String("log-format", "text", "log format: text or json")
	bindFlags(pFlags, map[string]string{
		"log.level":  "log-level",
		"log.format": "log-format",
	})
	addEngineFlags(pFlags)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(params.DatadirRoot)
		viper.AddConfigPath(".")
		viper.SetConfigName(params.DefaultConfigName)
	}
	viper.SetEnvPrefix(params.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		slog.Debug("Using config file", "file", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		// An explicitly named file must exist.
		fmt.Fprintln(os.Stderr, "Failed to read config:", err)
		os.Exit(1)
	}
}

func setDefaultSlog(cmd *cobra.Command, args []string) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log.level"))); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	// Logs go to stderr; stdout is reserved for filtered output.
	var handler slog.Handler
	switch format := viper.GetString("log.format"); format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "text", "":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}
