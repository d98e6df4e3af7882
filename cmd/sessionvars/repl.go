package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sessionvars/sessionvars"
	"github.com/sessionvars/sessionvars/log"
)

func init() {
	RootCommand.AddCommand(&cobra.Command{
		Use:   "repl",
		Short: "Start an interactive session against an in-process store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if cfg.LogLevel != "" {
				if err := log.Global().SetLevel(cfg.LogLevel); err != nil {
					log.Global().Warnf("invalid log_level %q: %v", cfg.LogLevel, err)
				}
			}
			s := sessionvars.New(sessionvars.FromConfig(cfg)...)
			return runREPL(os.Stdin, os.Stdout, s)
		},
	})
}

func runREPL(in io.Reader, out io.Writer, s *sessionvars.Session) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprintln(out, "sessionvars repl — type 'help' for commands, 'exit' to quit")
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd := fields[0]
		args := fields[1:]
		switch cmd {
		case "exit", "quit":
			return nil
		case "help":
			printHelp(out)
		case "begin":
			runCmd(out, s.Begin())
		case "savepoint":
			runCmd(out, s.Savepoint())
		case "release":
			runCmd(out, s.Release())
		case "rollback":
			runCmd(out, s.Rollback())
		case "set":
			replSet(out, s, args)
		case "get":
			replGet(out, s, args)
		case "exists":
			replExists(out, s, args)
		case "rmvar":
			if len(args) != 2 {
				fmt.Fprintln(out, "usage: rmvar <package> <name>")
				continue
			}
			runCmd(out, s.RemoveVariable(args[0], args[1]))
		case "rmpkg":
			if len(args) != 1 {
				fmt.Fprintln(out, "usage: rmpkg <package>")
				continue
			}
			runCmd(out, s.RemovePackage(args[0]))
		case "rmall":
			s.RemoveAllPackages()
		case "list":
			replList(out, s)
		case "stats":
			replStats(out, s)
		default:
			fmt.Fprintf(out, "unknown command %q; type 'help'\n", cmd)
		}
	}
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, `commands:
  begin | savepoint | release | rollback
  set <package> <name> <value> [transactional]
  get <package> <name>
  exists <package> <name>
  rmvar <package> <name>
  rmpkg <package>
  rmall
  list
  stats
  exit`)
}

func runCmd(out io.Writer, err error) {
	if err != nil {
		fmt.Fprintln(out, "error:", err)
	}
}

func replSet(out io.Writer, s *sessionvars.Session, args []string) {
	if len(args) < 3 {
		fmt.Fprintln(out, "usage: set <package> <name> <value> [transactional]")
		return
	}
	isTransactional := len(args) > 3 && args[3] == "transactional"
	value := args[2]
	if n, err := strconv.ParseFloat(value, 64); err == nil {
		runCmd(out, sessionvars.SetScalar(s, args[0], args[1], n, false, isTransactional))
		return
	}
	runCmd(out, sessionvars.SetScalar(s, args[0], args[1], value, false, isTransactional))
}

func replGet(out io.Writer, s *sessionvars.Session, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(out, "usage: get <package> <name>")
		return
	}
	v, err := sessionvars.GetScalar[any](s, args[0], args[1], true)
	if err != nil {
		fmt.Fprintln(out, "error:", err)
		return
	}
	fmt.Fprintln(out, v)
}

func replExists(out io.Writer, s *sessionvars.Session, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(out, "usage: exists <package> <name>")
		return
	}
	fmt.Fprintln(out, s.VariableExists(args[0], args[1]))
}

func replList(out io.Writer, s *sessionvars.Session) {
	for entry := range s.ListPackagesAndVariables() {
		fmt.Fprintf(out, "%s:\n", entry.Package)
		for _, v := range entry.Variables {
			fmt.Fprintf(out, "  %s (record=%v transactional=%v)\n", v.Name, v.IsRecord, v.IsTransactional)
		}
	}
}

func replStats(out io.Writer, s *sessionvars.Session) {
	for st := range s.PackageStats() {
		fmt.Fprintf(out, "%s: regular=%d transactional=%d bytes~=%d\n", st.Package, st.RegularVars, st.TransactionalVars, st.EstimatedBytes)
	}
}
