package danger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fixpoint/internal/agent/ports"
)

func fixedClock() time.Time {
	return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
}

func specFor(t *testing.T, pattern string) *CommandSpec {
	t.Helper()
	for _, s := range Specs() {
		if s.Pattern == pattern {
			return &s
		}
	}
	t.Fatalf("no spec for pattern %q", pattern)
	return nil
}

func TestBackupNoneIsNoOp(t *testing.T) {
	b := NewBackupperWith(nil, fixedClock)
	result, err := b.Execute(context.Background(), specFor(t, "dd"), "dd if=/dev/zero of=out", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, ports.BackupNone, result.Strategy)
	assert.Empty(t, result.Location)
}

func TestBackupFileCopiesTarget(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(ws, "notes.txt"), []byte("keep me"), 0o644))

	b := NewBackupperWith(nil, fixedClock)
	result, err := b.Execute(context.Background(), specFor(t, "rm"), "rm notes.txt", ws)
	require.NoError(t, err)

	assert.Equal(t, ports.BackupFile, result.Strategy)
	copied := filepath.Join(result.Location, "notes.txt")
	data, err := os.ReadFile(copied)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(data))
	assert.Contains(t, result.RestoreCommand, "cp ")
	assert.Contains(t, result.Location, BackupDirName)
}

func TestBackupDirectoryCopiesTree(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(ws, "build", "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ws, "build", "sub", "a.o"), []byte("obj"), 0o644))

	b := NewBackupperWith(nil, fixedClock)
	result, err := b.Execute(context.Background(), specFor(t, "rm -rf"), "rm -rf build", ws)
	require.NoError(t, err)

	assert.Equal(t, ports.BackupDirectory, result.Strategy)
	data, err := os.ReadFile(filepath.Join(result.Location, "build", "sub", "a.o"))
	require.NoError(t, err)
	assert.Equal(t, "obj", string(data))
}

func TestBackupFileMissingTargetFails(t *testing.T) {
	b := NewBackupperWith(nil, fixedClock)
	_, err := b.Execute(context.Background(), specFor(t, "rm"), "rm does-not-exist.txt", t.TempDir())
	assert.Error(t, err)
}

func TestGitStashBackup(t *testing.T) {
	var gotArgs []string
	runner := func(ctx context.Context, dir, name string, args ...string) (string, error) {
		gotArgs = append([]string{name}, args...)
		return "Saved working directory and index state", nil
	}

	b := NewBackupperWith(runner, fixedClock)
	result, err := b.Execute(context.Background(), specFor(t, "git reset --hard"), "git reset --hard", t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ports.BackupGitStash, result.Strategy)
	assert.Equal(t, "fixpoint-backup-20260314_093000", result.Location)
	assert.Equal(t, "git stash pop", result.RestoreCommand)
	assert.Equal(t, "git", gotArgs[0])
	assert.Contains(t, gotArgs, "--include-untracked")
}

func TestGitStashWithCleanTree(t *testing.T) {
	runner := func(ctx context.Context, dir, name string, args ...string) (string, error) {
		return "No local changes to save", nil
	}

	b := NewBackupperWith(runner, fixedClock)
	result, err := b.Execute(context.Background(), specFor(t, "git clean -fd"), "git clean -fd", t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, result.Location)
	assert.Empty(t, result.RestoreCommand)
}

func TestGitBranchBackup(t *testing.T) {
	runner := func(ctx context.Context, dir, name string, args ...string) (string, error) {
		return "", nil
	}

	b := NewBackupperWith(runner, fixedClock)
	result, err := b.Execute(context.Background(), specFor(t, "git push --force"), "git push --force origin main", t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ports.BackupGitBranch, result.Strategy)
	assert.Equal(t, "fixpoint-backup-20260314_093000", result.Location)
	assert.Equal(t, "git reset --hard fixpoint-backup-20260314_093000", result.RestoreCommand)
}

func TestPermissionSnapshot(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(ws, "script.sh"), []byte("#!/bin/sh"), 0o755))

	b := NewBackupperWith(nil, fixedClock)
	result, err := b.Execute(context.Background(), specFor(t, "chmod -R"), "chmod -R 600 "+ws, ws)
	require.NoError(t, err)

	assert.Equal(t, ports.BackupPermissions, result.Strategy)
	data, err := os.ReadFile(result.Location)
	require.NoError(t, err)
	assert.Contains(t, string(data), "script.sh")
	assert.Contains(t, string(data), "0755")
}

func TestResourceListingBackup(t *testing.T) {
	runner := func(ctx context.Context, dir, name string, args ...string) (string, error) {
		return "VOLUME NAME\ndata", nil
	}

	ws := t.TempDir()
	b := NewBackupperWith(runner, fixedClock)
	result, err := b.Execute(context.Background(), specFor(t, "docker volume rm"), "docker volume rm data", ws)
	require.NoError(t, err)

	assert.Equal(t, ports.BackupResourceListing, result.Strategy)
	data, err := os.ReadFile(result.Location)
	require.NoError(t, err)
	assert.Contains(t, string(data), "data")
}
