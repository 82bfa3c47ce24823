package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"git.sr.ht/~sircmpwn/getopt"

	"github.com/nhle/listarchive/internal/app"
	"github.com/nhle/listarchive/internal/log"
	"github.com/nhle/listarchive/internal/model"
	"github.com/nhle/listarchive/internal/theme"
)

const usageText = `usage: listarchive [-c config] [-d] <command> [args]

commands:
  import -l list [-s YYYY-MM-DD] mbox...   archive the messages of mbox files
  lists                                   list the archived lists
  threads [-k recent|top|popular] list    list threads of a list
  show thread                             print a thread as a tree
  export email                            print an email as a message
  posters list                            most active posters of the last month
  search list words...                    full-text search
  reparent email parent                   move an email under another one
  delete email                            delete an email
  vote -u user email value                like (1), dislike (-1) or clear (0)
  recompute [list...]                     recompute thread positions
  warmup [-m months] [list...]            fill the aggregate cache
  reindex [list...]                       rebuild the full-text index
  sync [-o]                               refresh lists and senders from the directory
  password                                store the directory password read from stdin
  serve                                   run workers and periodic jobs
`

func usage(msg string) {
	if msg != "" {
		fmt.Fprintln(os.Stderr, theme.ErrorStyle.Render(msg))
	}
	fmt.Fprint(os.Stderr, theme.HelpStyle.Render(usageText))
	os.Exit(2)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, theme.ErrorStyle.Render("error: "+err.Error()))
	os.Exit(1)
}

func main() {
	opts, optind, err := getopt.Getopts(os.Args, "c:d")
	if err != nil {
		usage("error: " + err.Error())
	}
	configPath := model.DefaultConfigPath()
	debug := false
	for _, opt := range opts {
		switch opt.Option {
		case 'c':
			configPath = opt.Value
		case 'd':
			debug = true
		}
	}
	args := os.Args[optind:]
	if len(args) == 0 {
		usage("")
	}
	cmd, ok := commands[args[0]]
	if !ok {
		usage(fmt.Sprintf("error: unknown command %q", args[0]))
	}

	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		fatal(err)
	}
	closeLog, err := initLogging(cfg.Log, debug)
	if err != nil {
		fatal(err)
	}
	defer closeLog()

	if args[0] == "password" {
		if err := cmdPassword(cfg); err != nil {
			fatal(err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg)
	if err != nil {
		fatal(err)
	}
	a.Start(ctx)

	err = cmd(ctx, a, args)
	a.Close()
	if err != nil {
		fatal(err)
	}
}

func initLogging(cfg model.LogConfig, debug bool) (func(), error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if debug {
		level = log.DEBUG
	}
	var w io.Writer = os.Stderr
	closer := func() {}
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		w = f
		closer = func() { f.Close() }
	}
	log.Init(w, level)
	return closer, nil
}
