package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/TimelordUK/bigless/internal/config"
	"github.com/TimelordUK/bigless/internal/logging"
	"github.com/TimelordUK/bigless/internal/ui"
)

func main() {
	cacheFlag := flag.Bool("c", false, "Cache file locally for better performance")
	timeFlag := flag.String("t", "", "Go to time (e.g., 14:00, 14:30:00)")
	filterFlag := flag.String("e", "", "Start with a filter (e.g., error, /regex, level:warn+, time:13:00..14:00)")
	followFlag := flag.Bool("f", false, "Follow the file as it grows")
	configFlag := flag.String("config", config.GetConfigPath(), "Config file")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: bigless [-c] [-f] [-t time] [-e filter] [-config file] <file>\n")
		fmt.Fprintf(os.Stderr, "  -c\tCache file locally (useful for network files)\n")
		fmt.Fprintf(os.Stderr, "  -f\tFollow the file as it grows\n")
		fmt.Fprintf(os.Stderr, "  -t\tGo to time (e.g., 14:00, 14:30:00)\n")
		fmt.Fprintf(os.Stderr, "  -e\tStart with a filter (e.g., error, /regex, level:warn+, time:13:00..14:00)\n")
		fmt.Fprintf(os.Stderr, "  -config\tConfig file (default %s)\n", config.GetConfigPath())
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadFile(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log, closer, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	opts := ui.ModelOptions{
		Filepath:  flag.Arg(0),
		CacheFile: *cacheFlag,
		GotoTime:  *timeFlag,
		Filter:    *filterFlag,
		Follow:    *followFlag,
		Config:    cfg,
		Logger:    log,
	}

	model, err := ui.NewModelWithOptions(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
