// Copyright © 2020 Jonathan Whitaker <jonathan@whitaker.io>

package cmd

import (
	"fmt"
	"os"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/streamson-io/tson/internal/tlog"
)

var cfgFile string
var debug bool

var rootCmd = &cobra.Command{
	Use:   "tson",
	Short: "tson streams JSON-superset values over the wire, asynchronously",
	Long: `tson is the reference command line for the streamson protocol: a single
head object describing the shape of a value, followed by a sequence of tail
rows resolving that value's promises and async sequences as producers finish.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		tlog.Init(debug)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.tson.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".tson")
	}

	viper.SetEnvPrefix("TSON")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		tlog.Debug().Str("file", viper.ConfigFileUsed()).Msg("tson: using config file")
	}
}
