package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/prudhvinik1/seatkeeper/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestHashPasswordCommand(t *testing.T) {
	out, err := runCommand(t, "", "hash-password", "--password", "correct-horse-battery")
	require.NoError(t, err)

	ok, err := utils.CheckPassword(strings.TrimSpace(out), "correct-horse-battery")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHashPasswordCommand_Stdin(t *testing.T) {
	out, err := runCommand(t, "correct-horse-battery\n", "hash-password")
	require.NoError(t, err)

	ok, err := utils.CheckPassword(strings.TrimSpace(out), "correct-horse-battery")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHashPasswordCommand_TooShort(t *testing.T) {
	_, err := runCommand(t, "", "hash-password", "--password", "short")
	assert.ErrorIs(t, err, utils.ErrPasswordTooShort)
}

func TestMigrateCommand_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := runCommand(t, "", "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCommand()
	names := []string{}
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "migrate")
	assert.Contains(t, names, "hash-password")
}
