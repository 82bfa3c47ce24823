package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"git.sr.ht/~sircmpwn/getopt"

	"github.com/nhle/listarchive/internal/app"
	"github.com/nhle/listarchive/internal/credential"
	"github.com/nhle/listarchive/internal/mboximport"
	"github.com/nhle/listarchive/internal/model"
)

type command func(ctx context.Context, a *app.App, args []string) error

var commands = map[string]command{
	"import":    cmdImport,
	"lists":     cmdLists,
	"threads":   cmdThreads,
	"show":      cmdShow,
	"export":    cmdExport,
	"posters":   cmdPosters,
	"search":    cmdSearch,
	"reparent":  cmdReparent,
	"delete":    cmdDelete,
	"vote":      cmdVote,
	"recompute": cmdRecompute,
	"warmup":    cmdWarmUp,
	"reindex":   cmdReindex,
	"sync":      cmdSync,
	"password":  nil,
	"serve":     cmdServe,
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func cmdImport(ctx context.Context, a *app.App, args []string) error {
	opts, optind, err := getopt.Getopts(args, "l:s:")
	if err != nil {
		return err
	}
	var o mboximport.Options
	for _, opt := range opts {
		switch opt.Option {
		case 'l':
			o.ListName = opt.Value
		case 's':
			since, err := time.Parse("2006-01-02", opt.Value)
			if err != nil {
				return fmt.Errorf("invalid -s date %q", opt.Value)
			}
			o.Since = &since
		}
	}
	files := args[optind:]
	if o.ListName == "" || len(files) == 0 {
		return errors.New("import needs -l list and at least one mbox file")
	}

	im := mboximport.New(a.Archive)
	for _, path := range files {
		report, err := im.ImportFile(ctx, path, o)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Printf("%s: %s\n", path, report)
	}
	return nil
}

func cmdLists(ctx context.Context, a *app.App, _ []string) error {
	lists, err := a.Lists(ctx, nil)
	if err != nil {
		return err
	}
	app.RenderLists(os.Stdout, lists)
	return nil
}

func cmdThreads(ctx context.Context, a *app.App, args []string) error {
	opts, optind, err := getopt.Getopts(args, "k:")
	if err != nil {
		return err
	}
	kind := "recent"
	for _, opt := range opts {
		if opt.Option == 'k' {
			kind = opt.Value
		}
	}
	if len(args[optind:]) != 1 {
		return errors.New("threads needs a list name")
	}
	list := args[optind]

	var ids []int64
	switch kind {
	case "recent":
		ids, err = a.Archive.RecentThreads(ctx, list)
	case "top":
		ids, err = a.Archive.TopThreads(ctx, list)
	case "popular":
		ids, err = a.Archive.PopularThreads(ctx, list)
	default:
		return fmt.Errorf("unknown thread kind %q", kind)
	}
	if err != nil {
		return err
	}
	return a.RenderThreadList(ctx, os.Stdout, fmt.Sprintf("%s threads of %s", kind, list), ids)
}

func cmdShow(ctx context.Context, a *app.App, args []string) error {
	if len(args) != 2 {
		return errors.New("show needs a thread id")
	}
	id, err := parseID(args[1])
	if err != nil {
		return err
	}
	return a.RenderThread(ctx, os.Stdout, id)
}

func cmdExport(ctx context.Context, a *app.App, args []string) error {
	if len(args) != 2 {
		return errors.New("export needs an email id")
	}
	id, err := parseID(args[1])
	if err != nil {
		return err
	}
	return a.Archive.AsMessage(ctx, id, os.Stdout)
}

func cmdPosters(ctx context.Context, a *app.App, args []string) error {
	if len(args) != 2 {
		return errors.New("posters needs a list name")
	}
	posters, err := a.Archive.TopPosters(ctx, args[1])
	if err != nil {
		return err
	}
	app.RenderPosters(os.Stdout, posters)
	return nil
}

func cmdSearch(_ context.Context, a *app.App, args []string) error {
	if len(args) < 3 {
		return errors.New("search needs a list name and words")
	}
	if a.Search == nil {
		return errors.New("no search index configured")
	}
	docs, err := a.Search.Search(args[1], strings.Join(args[2:], " "))
	if err != nil {
		return err
	}
	app.RenderSearch(os.Stdout, docs)
	return nil
}

func cmdReparent(ctx context.Context, a *app.App, args []string) error {
	if len(args) != 3 {
		return errors.New("reparent needs an email id and a parent id")
	}
	id, err := parseID(args[1])
	if err != nil {
		return err
	}
	parent, err := parseID(args[2])
	if err != nil {
		return err
	}
	return a.Archive.SetParent(ctx, id, parent)
}

func cmdDelete(ctx context.Context, a *app.App, args []string) error {
	if len(args) != 2 {
		return errors.New("delete needs an email id")
	}
	id, err := parseID(args[1])
	if err != nil {
		return err
	}
	return a.Archive.DeleteEmail(ctx, id)
}

func cmdVote(ctx context.Context, a *app.App, args []string) error {
	opts, optind, err := getopt.Getopts(args, "u:")
	if err != nil {
		return err
	}
	user := ""
	for _, opt := range opts {
		if opt.Option == 'u' {
			user = opt.Value
		}
	}
	rest := args[optind:]
	if user == "" || len(rest) != 2 {
		return errors.New("vote needs -u user, an email id and a value")
	}
	id, err := parseID(rest[0])
	if err != nil {
		return err
	}
	value, err := strconv.Atoi(rest[1])
	if err != nil {
		return fmt.Errorf("invalid vote %q", rest[1])
	}
	return a.Archive.Vote(ctx, id, user, value)
}

func cmdRecompute(ctx context.Context, a *app.App, args []string) error {
	n, err := a.RecomputeAll(ctx, args[1:])
	fmt.Printf("recomputed %d threads\n", n)
	return err
}

func cmdWarmUp(ctx context.Context, a *app.App, args []string) error {
	opts, optind, err := getopt.Getopts(args, "m:")
	if err != nil {
		return err
	}
	months := 0
	for _, opt := range opts {
		if opt.Option == 'm' {
			months, err = strconv.Atoi(opt.Value)
			if err != nil || months < 0 {
				return fmt.Errorf("invalid -m value %q", opt.Value)
			}
		}
	}
	return a.WarmUp(ctx, args[optind:], months)
}

func cmdReindex(ctx context.Context, a *app.App, args []string) error {
	n, err := a.Reindex(ctx, args[1:])
	fmt.Printf("indexed %d emails\n", n)
	return err
}

func cmdSync(ctx context.Context, a *app.App, args []string) error {
	opts, _, err := getopt.Getopts(args, "o")
	if err != nil {
		return err
	}
	overwrite := false
	for _, opt := range opts {
		if opt.Option == 'o' {
			overwrite = true
		}
	}
	return a.SyncDirectory(ctx, overwrite)
}

func cmdServe(ctx context.Context, a *app.App, _ []string) error {
	return a.Serve(ctx)
}

// cmdPassword stores the directory password in the system keyring.
func cmdPassword(cfg *model.AppConfig) error {
	key := cfg.Directory.PasswordKey
	if key == "" {
		return errors.New("directory.password_key is empty")
	}
	fmt.Fprint(os.Stderr, "directory password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return errors.New("empty password")
	}
	return credential.Set(key, password)
}
