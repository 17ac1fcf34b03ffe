package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/gin-bindings/internal/bindings"
	"github.com/eugenenazirov/gin-bindings/internal/logging"
)

func main() {
	c := newCLI(os.Stdout, os.Stderr)
	c.app.FatalIfError(c.run(context.Background(), os.Args[1:]), "")
}

type cli struct {
	app         *kingpin.Application
	searchPaths *[]string
	logLevel    *string

	check      *kingpin.CmdClause
	checkFiles *[]string

	show       *kingpin.CmdClause
	showFiles  *[]string
	showFormat *string

	get      *kingpin.CmdClause
	getFiles *[]string
	getKey   *string
	getType  *string

	targets      *kingpin.CmdClause
	targetsFiles *[]string

	params       *kingpin.CmdClause
	paramsFiles  *[]string
	paramsTarget *string
	paramsScope  *string

	refs      *kingpin.CmdClause
	refsFiles *[]string

	stdout io.Writer
}

func newCLI(stdout, stderr io.Writer) *cli {
	app := kingpin.New("bindctl", "Load, check and inspect gin binding files")
	app.UsageWriter(stdout)
	app.ErrorWriter(stderr)

	c := &cli{
		app:         app,
		stdout:      stdout,
		searchPaths: app.Flag("search-path", "Directory searched for included files (repeatable)").Short('I').Strings(),
		logLevel:    app.Flag("log-level", "Log level: debug, info, warning, error, critical").Default("warning").String(),
	}

	c.check = app.Command("check", "Load and resolve binding files, reporting the first error")
	c.checkFiles = c.check.Arg("files", "Binding files, loaded in order").Required().Strings()

	c.show = app.Command("show", "Print the resolved binding table")
	c.showFiles = c.show.Arg("files", "Binding files, loaded in order").Required().Strings()
	c.showFormat = c.show.Flag("format", "Output format").Short('f').Default("gin").Enum("gin", "yaml", "json")

	c.get = app.Command("get", "Print one resolved binding")
	c.getFiles = c.get.Arg("files", "Binding files, loaded in order").Required().Strings()
	c.getKey = c.get.Flag("key", "Binding key, e.g. GrowingNode.activation_limit or scope/Target.param").Short('k').Required().String()
	c.getType = c.get.Flag("type", "Print the value converted to this type").Short('t').Default("value").
		Enum("value", "int", "float", "bool", "string", "level")

	c.targets = app.Command("targets", "List the configurables that have bindings")
	c.targetsFiles = c.targets.Arg("files", "Binding files, loaded in order").Required().Strings()

	c.params = app.Command("params", "Print the parameters bound for one configurable")
	c.paramsFiles = c.params.Arg("files", "Binding files, loaded in order").Required().Strings()
	c.paramsTarget = c.params.Flag("target", "Configurable name, e.g. GrowingNode").Required().String()
	c.paramsScope = c.params.Flag("scope", "Scope the configurable is called in, e.g. outer/inner").String()

	c.refs = app.Command("refs", "List the macros each binding references, before includes are expanded")
	c.refsFiles = c.refs.Arg("files", "Binding files").Required().ExistingFiles()

	return c
}

func (c *cli) run(ctx context.Context, args []string) error {
	command, err := c.app.Parse(args)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(*c.logLevel)
	if err != nil {
		return err
	}
	logger, err := logging.New(level)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	loader := bindings.NewLoader(
		bindings.WithSearchPaths(*c.searchPaths...),
		bindings.WithLogger(logger),
	)

	switch command {
	case c.check.FullCommand():
		return runCheck(ctx, loader, *c.checkFiles, c.stdout)
	case c.show.FullCommand():
		return runShow(ctx, loader, *c.showFiles, *c.showFormat, c.stdout)
	case c.get.FullCommand():
		return runGet(ctx, loader, *c.getFiles, *c.getKey, *c.getType, c.stdout, logger)
	case c.targets.FullCommand():
		return runTargets(ctx, loader, *c.targetsFiles, c.stdout)
	case c.params.FullCommand():
		return runParams(ctx, loader, *c.paramsFiles, *c.paramsScope, *c.paramsTarget, c.stdout)
	case c.refs.FullCommand():
		return runRefs(*c.refsFiles, c.stdout)
	}
	return fmt.Errorf("unknown command %q", command)
}

func runCheck(ctx context.Context, loader *bindings.Loader, files []string, w io.Writer) error {
	table, err := loader.Load(ctx, files...)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "ok: %d bindings from %d files\n", table.Len(), len(table.Files()))
	return err
}

func runShow(ctx context.Context, loader *bindings.Loader, files []string, format string, w io.Writer) error {
	table, err := loader.Load(ctx, files...)
	if err != nil {
		return err
	}

	switch format {
	case "yaml":
		return table.WriteYAML(w)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(table)
	default:
		return table.WriteConfig(w)
	}
}

func runGet(ctx context.Context, loader *bindings.Loader, files []string, key, typ string, w io.Writer, logger *zap.Logger) error {
	table, err := loader.Load(ctx, files...)
	if err != nil {
		return err
	}
	if pos, ok := table.Position(key); ok {
		logger.Debug("binding found", zap.String("key", key), zap.Stringer("position", pos))
	}

	text, err := formatTyped(table, key, typ)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, text)
	return err
}

func formatTyped(table *bindings.Table, key, typ string) (string, error) {
	switch typ {
	case "int":
		n, err := table.Int(key)
		return strconv.FormatInt(n, 10), err
	case "float":
		f, err := table.Float(key)
		return strconv.FormatFloat(f, 'g', -1, 64), err
	case "bool":
		b, err := table.Bool(key)
		return strconv.FormatBool(b), err
	case "string":
		return table.Text(key)
	case "level":
		value, err := table.Lookup(key)
		if err != nil {
			return "", err
		}
		level, err := logging.LevelFromValue(value)
		return level.String(), err
	default:
		value, err := table.Lookup(key)
		return value.String(), err
	}
}

func runTargets(ctx context.Context, loader *bindings.Loader, files []string, w io.Writer) error {
	table, err := loader.Load(ctx, files...)
	if err != nil {
		return err
	}
	for _, target := range table.Targets() {
		if _, err := fmt.Fprintln(w, target); err != nil {
			return err
		}
	}
	return nil
}

func runParams(ctx context.Context, loader *bindings.Loader, files []string, scope, target string, w io.Writer) error {
	table, err := loader.Load(ctx, files...)
	if err != nil {
		return err
	}

	params := table.Params(scope, target)
	if len(params) == 0 {
		return fmt.Errorf("%w: no parameters bound for %s", bindings.ErrNotFound, target)
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := fmt.Fprintf(w, "%s = %s\n", name, params[name]); err != nil {
			return err
		}
	}
	return nil
}

func runRefs(files []string, w io.Writer) error {
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		file, err := bindings.Parse(path, data)
		if err != nil {
			return err
		}

		refs := bindings.MacroReferences(file.Bindings)
		keys := make([]string, 0, len(refs))
		for key := range refs {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if _, err := fmt.Fprintf(w, "%s: %s -> %s\n", path, key, strings.Join(refs[key], ", ")); err != nil {
				return err
			}
		}
	}
	return nil
}
