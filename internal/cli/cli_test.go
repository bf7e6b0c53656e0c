package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes one command line against a fresh command tree
func run(t *testing.T, home, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--home", home}, args...))
	err := root.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, home string, args ...string) string {
	t.Helper()
	out, err := run(t, home, "", args...)
	require.NoError(t, err, out)
	return out
}

func TestDatabaseLifecycle(t *testing.T) {
	home := t.TempDir()

	out := mustRun(t, home, "create", "pages", "--codec", "xz", "--page-size", "1024")
	assert.Contains(t, out, "Database pages created (codec xz, page size 1024)")

	_, err := run(t, home, "", "create", "pages")
	assert.Error(t, err)
	_, err = run(t, home, "", "create", "other", "--codec", "nope")
	assert.Error(t, err)

	assert.Equal(t, "pages\n", mustRun(t, home, "list"))

	_, err = run(t, home, "hello zipstore", "write", "pages", "1", "-")
	require.NoError(t, err)

	src := filepath.Join(home, "page.bin")
	require.NoError(t, os.WriteFile(src, bytes.Repeat([]byte{0xAB}, 1024), 0o644))
	mustRun(t, home, "write", "pages", "3", src)

	big := filepath.Join(home, "big.bin")
	require.NoError(t, os.WriteFile(big, make([]byte, 1025), 0o644))
	_, err = run(t, home, "", "write", "pages", "2", big)
	assert.ErrorContains(t, err, "larger than")

	dst := filepath.Join(home, "out.bin")
	mustRun(t, home, "read", "pages", "1", dst)
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Len(t, got, 1024)
	assert.Equal(t, "hello zipstore", string(got[:14]))
	assert.Equal(t, make([]byte, 1024-14), got[14:])

	dump := mustRun(t, home, "read", "pages", "3")
	assert.Contains(t, dump, "ab ab ab ab")

	stats := mustRun(t, home, "stats", "pages")
	assert.Contains(t, stats, "Pages:")
	assert.Contains(t, stats, "xz")

	assert.Equal(t, "ok\n", mustRun(t, home, "check", "pages"))
	assert.Len(t, strings.TrimSpace(mustRun(t, home, "digest", "pages")), 64)

	layout := mustRun(t, home, "structure", "pages")
	assert.Contains(t, layout, "PAGE")
	assert.Len(t, strings.Split(strings.TrimSpace(layout), "\n"), 3)

	mustRun(t, home, "truncate", "pages", "1")
	mustRun(t, home, "compact", "pages", "--max", "1KiB")
	mustRun(t, home, "compact", "pages")
	assert.Equal(t, "ok\n", mustRun(t, home, "check", "pages"))

	assert.Equal(t, "rollback\n", mustRun(t, home, "journal-mode", "pages"))
	assert.Equal(t, "wal\n", mustRun(t, home, "journal-mode", "pages", "wal"))
	assert.Equal(t, "wal\n", mustRun(t, home, "journal-mode", "pages"))
	mustRun(t, home, "checkpoint", "pages")

	mustRun(t, home, "delete", "pages")
	assert.Equal(t, "", mustRun(t, home, "list"))
	_, err = run(t, home, "", "stats", "pages")
	assert.Error(t, err)
}

func TestUserCommands(t *testing.T) {
	home := t.TempDir()

	mustRun(t, home, "create-user", "alice", "pw", "user")
	_, err := run(t, home, "", "create-user", "alice", "pw", "user")
	assert.Error(t, err)
	_, err = run(t, home, "", "create-user", "bob", "pw", "admin")
	assert.Error(t, err)

	assert.Contains(t, mustRun(t, home, "grant", "alice", "pages"), "Granted alice access to pages")
	assert.Contains(t, mustRun(t, home, "revoke", "alice", "pages"), "Revoked alice access to pages")
	_, err = run(t, home, "", "grant", "nobody", "pages")
	assert.Error(t, err)

	mustRun(t, home, "delete-user", "alice")
	_, err = run(t, home, "", "delete-user", "alice")
	assert.Error(t, err)
}

func TestShell(t *testing.T) {
	home := t.TempDir()
	mustRun(t, home, "create", "sh", "--page-size", "1024")

	script := strings.Join([]string{
		"truncate 4",
		"stats",
		"compact --max 1KiB",
		"compact",
		"read 0",
		"bogus",
		"check",
		"exit",
		"stats",
	}, "\n")
	out, err := run(t, home, script, "shell", "sh")
	require.NoError(t, err)

	assert.Contains(t, out, "sh> ")
	assert.Contains(t, out, "Truncated to 4 pages")
	assert.Equal(t, 1, strings.Count(out, "Pages:"))
	assert.Contains(t, out, "Error: invalid page number")
	assert.Contains(t, out, "Error: unknown command")
	assert.Contains(t, out, "ok\n")
}
