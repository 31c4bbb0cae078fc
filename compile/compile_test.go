package compile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/dynarec/backend"
)

const foldable = `block a32 0x2000
%0 = Add32 #2, #3, #0
%1 = A32GetRegister r4
%2 = Eor32 %1, %0
A32SetRegister r0, %2
terminal LinkBlock 0x2004
`

func TestCompile(t *testing.T) {
	ctx := context.Background()

	for _, arch := range Hosts() {
		obj, err := Compile(ctx, []byte(foldable), Options{Arch: arch})
		require.NoError(t, err, arch)

		t.Logf("%s:\n%s", arch, obj)

		opt, err := Compile(ctx, []byte(foldable), Options{Arch: arch, Optimize: true})
		require.NoError(t, err, arch)

		t.Logf("%s optimized:\n%s", arch, opt)

		assert.Contains(t, string(obj), "ADD", arch)
		assert.NotContains(t, string(opt), "ADD", arch)
		assert.Contains(t, string(opt), backend.Label(locOf(0x2004)), arch)
	}
}

func TestBuild(t *testing.T) {
	c, err := Build(context.Background(), []byte(foldable), Options{Arch: "arm64", Optimize: true, Seed: 1})
	require.NoError(t, err)

	assert.Equal(t, "arm64", c.Host)
	assert.Equal(t, locOf(0x2000), c.Location)
	assert.Equal(t, 0, c.SpillBytes)
	assert.Positive(t, c.Insts)
}

func TestErrors(t *testing.T) {
	ctx := context.Background()

	_, err := Compile(ctx, []byte(foldable), Options{Arch: "mips"})
	assert.ErrorIs(t, err, ErrUnknownArch)

	_, err = Compile(ctx, []byte("block a32 0\n%0 = NoSuchOp #1\n"), Options{Arch: "x64"})
	assert.ErrorContains(t, err, "parse text")

	_, err = CompileFile(ctx, filepath.Join(t.TempDir(), "missing.ir"), Options{Arch: "x64"})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCompileFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "block.ir")

	err := os.WriteFile(name, []byte(foldable), 0o644)
	require.NoError(t, err)

	obj, err := CompileFile(context.Background(), name, Options{Arch: "x64", Optimize: true})
	require.NoError(t, err)

	assert.Contains(t, string(obj), "JMP\tblock_a32_0x2004")
}
