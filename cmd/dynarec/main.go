package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/chzyer/readline"
	"github.com/docker/go-units"
	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/dynarec/backend"
	"github.com/slowlang/dynarec/compile"
)

func main() {
	compileFlags := []*cli.Flag{
		cli.NewFlag("arch", "arm64", "host arch: "+strings.Join(compile.Hosts(), ", ")),
		cli.NewFlag("seed", 0, "spill victim tie breaker seed"),
		cli.NewFlag("spill-slots", 0, "spill area size in slots, 0 for the default"),
		cli.NewFlag("no-opt", false, "skip optimization passes"),
		cli.NewFlag("debug", false, "dump resident values after each instruction"),
	}

	dumpCmd := &cli.Command{
		Name:        "dump",
		Description: "parse, optimize and print blocks",
		Action:      dumpAct,
		Args:        cli.Args{},
		Flags:       compileFlags,
	}

	compileCmd := &cli.Command{
		Name:        "compile",
		Description: "translate blocks into host assembly",
		Action:      compileAct,
		Args:        cli.Args{},
		Flags:       compileFlags,
	}

	replCmd := &cli.Command{
		Name:        "repl",
		Description: "enter a block line by line, .end compiles it",
		Action:      replAct,
		Flags:       compileFlags,
	}

	app := &cli.Command{
		Name:        "dynarec",
		Description: "dynarec is a translator back end playground: text IR in, host assembly out",
		Before:      before,
		Flags: []*cli.Flag{
			cli.NewFlag("verbosity,v", "", "tlog verbosity topics"),
			cli.HelpFlag,
		},
		Commands: []*cli.Command{
			dumpCmd,
			compileCmd,
			replCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func before(c *cli.Command) error {
	tlog.SetVerbosity(c.String("verbosity"))

	return nil
}

func options(c *cli.Command) compile.Options {
	return compile.Options{
		Arch:       c.String("arch"),
		Optimize:   !c.Bool("no-opt"),
		Seed:       uint64(c.Int("seed")),
		SpillSlots: c.Int("spill-slots"),
		Debug:      c.Bool("debug"),
	}
}

func dumpAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	opts := options(c)

	for _, a := range c.Args {
		text, err := os.ReadFile(a)
		if err != nil {
			return errors.Wrap(err, "read %v", a)
		}

		b, err := compile.Prepare(ctx, text, opts)
		if err != nil {
			return errors.Wrap(err, "prepare %v", a)
		}

		fmt.Printf("%s", b.Dump())
	}

	return nil
}

func compileAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	opts := options(c)

	for _, a := range c.Args {
		text, err := os.ReadFile(a)
		if err != nil {
			return errors.Wrap(err, "read %v", a)
		}

		code, err := compile.Build(ctx, text, opts)
		if err != nil {
			return errors.Wrap(err, "compile %v", a)
		}

		fmt.Printf("%s", code.Text)
		fmt.Printf("%s\n", summary(code))
	}

	return nil
}

func replAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	opts := options(c)

	l, err := readline.NewEx(&readline.Config{
		Prompt:            "> ",
		HistoryFile:       ".dynarec-history.tmp",
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return errors.Wrap(err, "readline")
	}

	defer l.Close()

	var block bytes.Buffer

	for {
		line, err := l.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			if block.Len() == 0 {
				return nil
			}

			block.Reset()
			l.SetPrompt("> ")

			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return errors.Wrap(err, "read line")
		}

		line = strings.TrimSpace(line)

		switch line {
		case "":
			continue
		case ".end":
		default:
			block.WriteString(line)
			block.WriteByte('\n')
			l.SetPrompt(". ")

			continue
		}

		replCompile(ctx, block.Bytes(), opts)

		block.Reset()
		l.SetPrompt("> ")
	}
}

// replCompile reports failures instead of exiting so that a broken block does not end the session.
func replCompile(ctx context.Context, text []byte, opts compile.Options) {
	defer func() {
		p := recover()
		if p == nil {
			return
		}

		if _, ok := p.(runtime.Error); ok {
			panic(p)
		}

		if _, ok := p.(error); !ok {
			panic(p)
		}

		fmt.Printf("panic: %v\n", p)
	}()

	code, err := compile.Build(ctx, text, opts)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	fmt.Printf("%s%s\n", code.Text, summary(code))
}

func summary(c *backend.Code) string {
	var b strings.Builder

	fmt.Fprintf(&b, "; %v on %s: %d insts", c.Location, c.Host, c.Insts)

	if size, ok := c.Size(); ok {
		fmt.Fprintf(&b, ", %s", units.HumanSize(float64(size)))
	}

	if c.SpillBytes != 0 {
		fmt.Fprintf(&b, ", spill area %s", units.HumanSize(float64(c.SpillBytes)))
	}

	fmt.Fprintf(&b, ", spills %d fills %d", c.Stats.Spills, c.Stats.Fills)

	return b.String()
}
