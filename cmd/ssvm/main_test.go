package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/second-state/ssvm-go/internal/leb128"
)

// addWasmBinary encodes "(func (param i32 i32) (result i32) local.get 0
// local.get 1 i32.add)" exported as "add", using the same hand-rolled
// section/vec helpers the binary decoder's own tests use.
func addWasmBinary(t *testing.T) []byte {
	t.Helper()
	u32 := func(v uint32) []byte { return leb128.EncodeUint32(v) }
	vec := func(items ...[]byte) []byte {
		out := u32(uint32(len(items)))
		for _, it := range items {
			out = append(out, it...)
		}
		return out
	}
	section := func(id byte, payload []byte) []byte {
		out := []byte{id}
		out = append(out, u32(uint32(len(payload)))...)
		return append(out, payload...)
	}

	funcType := append([]byte{0x60}, append(append(u32(2), 0x7f, 0x7f), append(u32(1), 0x7f)...)...)
	typeSec := section(0x01, vec(funcType))
	funcSec := section(0x03, vec(u32(0)))
	body := []byte{0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b} // local.get 0; local.get 1; i32.add; end
	codeEntry := append(u32(0), body...)
	codeSec := section(0x0a, vec(append(u32(uint32(len(codeEntry))), codeEntry...)))
	name := []byte("add")
	exportSec := section(0x07, vec(append(append(u32(uint32(len(name))), name...), 0x00, 0x00)))

	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	out = append(out, typeSec...)
	out = append(out, funcSec...)
	out = append(out, exportSec...)
	out = append(out, codeSec...)
	return out
}

func runMain(t *testing.T, args []string) (exitCode int, stdOut, stdErr string) {
	t.Helper()
	outBuf, errBuf := &bytes.Buffer{}, &bytes.Buffer{}
	exitCode = doMain(outBuf, errBuf, args)
	return exitCode, outBuf.String(), errBuf.String()
}

func TestRun_InvokeExportedFunction(t *testing.T) {
	path := filepath.Join(t.TempDir(), "add.wasm")
	require.NoError(t, os.WriteFile(path, addWasmBinary(t), 0o644))

	exitCode, stdOut, stdErr := runMain(t, []string{"run", "-invoke", "add", path, "2", "3"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "5\n", stdOut)
	require.Empty(t, stdErr)
}

func TestRun_InstantiateWithoutInvoke(t *testing.T) {
	path := filepath.Join(t.TempDir(), "add.wasm")
	require.NoError(t, os.WriteFile(path, addWasmBinary(t), 0o644))

	exitCode, _, stdErr := runMain(t, []string{"run", path})
	require.Equal(t, 0, exitCode)
	require.Empty(t, stdErr)
}

func TestRun_MissingFileFails(t *testing.T) {
	exitCode, _, stdErr := runMain(t, []string{"run", "/no/such/file.wasm"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stdErr, "ssvm:")
}

func TestVersion(t *testing.T) {
	exitCode, stdOut, _ := runMain(t, []string{"version"})
	require.Equal(t, 0, exitCode)
	require.NotEmpty(t, stdOut)
}

func TestUsage_NoArgs(t *testing.T) {
	exitCode, _, stdErr := runMain(t, nil)
	require.Equal(t, 1, exitCode)
	require.Contains(t, stdErr, "Usage:")
}
