package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/mescon/Tickarr/internal/cli"
	"github.com/mescon/Tickarr/internal/config"
	"github.com/mescon/Tickarr/internal/logger"
)

func main() {
	showVersion := flag.Bool("version", false, "Print version and exit")
	tickInterval := flag.Duration("tick-interval", 0, "Time between countdown ticks (default: 1s)")
	logLevel := flag.String("log-level", "error", "Log level: debug, info, warn, error")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Tickarr CLI %s\n", config.Version)
		os.Exit(0)
	}
	logger.SetLevel(*logLevel)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "tickarr> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("format"), readline.PcItem("readable"), readline.PcItem("parse"),
			readline.PcItem("validate"), readline.PcItem("progress"), readline.PcItem("thresholds"),
			readline.PcItem("zone"), readline.PcItem("transition"), readline.PcItem("transitions"),
			readline.PcItem("run"), readline.PcItem("pause"), readline.PcItem("resume"),
			readline.PcItem("reset"), readline.PcItem("restart"), readline.PcItem("status"),
			readline.PcItem("watch"), readline.PcItem("help"), readline.PcItem("quit"),
		),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create readline: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	shell := cli.NewShell(rl.Stdout(), *tickInterval)
	defer shell.Close()

	// One-shot mode: tickarr-cli format 90
	if args := flag.Args(); len(args) > 0 {
		shell.Exec(strings.Join(args, " "))
		return
	}

	shell.Exec("help")
	for {
		line, err := rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(rl.Stdout(), "Exiting...")
			return
		}
		if !shell.Exec(line) {
			fmt.Fprintln(rl.Stdout(), "Exiting...")
			return
		}
	}
}
