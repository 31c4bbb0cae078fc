// Package compile runs the whole pipeline: text IR to host assembly.
package compile

import (
	"context"
	"os"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/dynarec/backend"
	"github.com/slowlang/dynarec/backend/arm64"
	"github.com/slowlang/dynarec/backend/x64"
	"github.com/slowlang/dynarec/ir"
	"github.com/slowlang/dynarec/opt"
)

type (
	Options struct {
		// Arch is the host, arm64 or x64.
		Arch string

		Optimize bool

		Seed       uint64
		SpillSlots int
		Debug      bool
	}

	emitFunc func(ctx context.Context, b *ir.Block, opts backend.Options) (*backend.Code, error)
)

var hosts = map[string]emitFunc{
	"arm64": arm64.EmitBlock,
	"x64":   x64.EmitBlock,
}

var ErrUnknownArch = errors.New("unknown host arch")

// Hosts lists supported host archs.
func Hosts() []string {
	return []string{"arm64", "x64"}
}

func CompileFile(ctx context.Context, name string, opts Options) (obj []byte, err error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(text), "name", name)

	return Compile(ctx, text, opts)
}

func Compile(ctx context.Context, text []byte, opts Options) (obj []byte, err error) {
	c, err := Build(ctx, text, opts)
	if err != nil {
		return nil, err
	}

	return c.Text, nil
}

// Prepare parses the block and optionally runs the passes on it.
func Prepare(ctx context.Context, text []byte, opts Options) (b *ir.Block, err error) {
	b, err = ir.Parse(text)
	if err != nil {
		return nil, errors.Wrap(err, "parse text")
	}

	tr := tlog.SpanFromContext(ctx)

	if tr.If("dump_block") {
		tr.Printw("parsed block", "loc", b.Location, "insts", b.Len())
		tr.Printw("block\n" + b.Dump())
	}

	if !opts.Optimize {
		err = opt.Verify(b)
		if err != nil {
			return nil, errors.Wrap(err, "verify")
		}

		return b, nil
	}

	err = opt.Run(ctx, b)
	if err != nil {
		return nil, errors.Wrap(err, "optimize")
	}

	if tr.If("dump_block") {
		tr.Printw("optimized block\n" + b.Dump())
	}

	return b, nil
}

// Build is Compile returning the emission details.
func Build(ctx context.Context, text []byte, opts Options) (c *backend.Code, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "compile", "arch", opts.Arch, "optimize", opts.Optimize)
	defer tr.Finish("err", &err)

	emit, ok := hosts[opts.Arch]
	if !ok {
		return nil, errors.Wrap(ErrUnknownArch, "%q", opts.Arch)
	}

	b, err := Prepare(ctx, text, opts)
	if err != nil {
		return nil, err
	}

	c, err = emit(ctx, b, backend.Options{
		Seed:       opts.Seed,
		SpillSlots: opts.SpillSlots,
		Debug:      opts.Debug,
	})
	if err != nil {
		return nil, errors.Wrap(err, "emit")
	}

	return c, nil
}
