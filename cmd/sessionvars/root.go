// Command sessionvars is a small interactive driver for the store,
// useful for manual exploration and scripting. Commands registered here
// follow the teacher's cmd package convention: each subcommand self-registers
// onto RootCommand from its own file's init().
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sessionvars/sessionvars/config"
	"github.com/sessionvars/sessionvars/log"
)

// RootCommand is the entry point every subcommand attaches itself to.
var RootCommand = &cobra.Command{
	Use:   "sessionvars",
	Short: "Drive a session-scoped transactional variable store",
	Long:  "sessionvars is a command-line driver for the store implemented by this module.",
}

var configFile string

func init() {
	RootCommand.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML/JSON config file (convert_unknownoid, max_open_cursors, log_level)")
}

func loadConfig() config.Config {
	loader := config.NewLoader()
	if err := loader.BindFlags(RootCommand.PersistentFlags()); err != nil {
		log.Global().Errorf("bind flags: %v", err)
	}
	if configFile != "" {
		if err := loader.ReadFile(configFile); err != nil {
			log.Global().Errorf("read config %s: %v", configFile, err)
		}
	}
	cfg, err := loader.Config()
	if err != nil {
		log.Global().Errorf("materialize config: %v", err)
		return config.Defaults()
	}
	return cfg
}

func main() {
	if err := RootCommand.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
