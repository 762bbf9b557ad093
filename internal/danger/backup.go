package danger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"fixpoint/internal/agent/ports"
	"fixpoint/internal/shared/logging"
)

// BackupDirName is the workspace-relative directory holding all snapshots.
const BackupDirName = ".fixpoint-backups"

// BackupResult describes one completed snapshot.
type BackupResult struct {
	Strategy       ports.BackupStrategy
	Location       string
	RestoreCommand string
}

// CommandRunner executes a helper command (git, docker) and returns combined
// output. Stubable in tests.
type CommandRunner func(ctx context.Context, dir string, name string, args ...string) (string, error)

func defaultRunner(ctx context.Context, dir string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

// Backupper executes pre-execution snapshots for dangerous commands.
type Backupper struct {
	runner CommandRunner
	logger logging.Logger
	now    func() time.Time
}

// NewBackupper constructs a Backupper with the real command runner.
func NewBackupper() *Backupper {
	return &Backupper{
		runner: defaultRunner,
		logger: logging.NewAuditLogger("backup"),
		now:    time.Now,
	}
}

// NewBackupperWith allows injecting the runner and clock, for tests.
func NewBackupperWith(runner CommandRunner, now func() time.Time) *Backupper {
	b := NewBackupper()
	if runner != nil {
		b.runner = runner
	}
	if now != nil {
		b.now = now
	}
	return b
}

// Execute performs the snapshot the spec calls for before command runs in
// workingDir. BackupNone returns an empty result without error.
func (b *Backupper) Execute(ctx context.Context, spec *CommandSpec, command, workingDir string) (*BackupResult, error) {
	if spec == nil || spec.Backup == ports.BackupNone {
		return &BackupResult{Strategy: ports.BackupNone}, nil
	}

	switch spec.Backup {
	case ports.BackupDirectory:
		return b.backupDirectory(command, workingDir)
	case ports.BackupFile:
		return b.backupFiles(command, workingDir)
	case ports.BackupPermissions:
		return b.snapshotAttrs(command, workingDir, "permissions")
	case ports.BackupOwnership:
		return b.snapshotAttrs(command, workingDir, "ownership")
	case ports.BackupGitStash:
		return b.gitStash(ctx, workingDir)
	case ports.BackupGitBranch:
		return b.gitBackupBranch(ctx, workingDir)
	case ports.BackupResourceListing:
		return b.resourceListing(ctx, command, workingDir)
	default:
		return nil, fmt.Errorf("unknown backup strategy %q", spec.Backup)
	}
}

// backupDir creates a fresh timestamped snapshot directory.
func (b *Backupper) backupDir(workingDir, label string) (string, error) {
	stamp := b.now().Format("20060102_150405")
	dir := filepath.Join(workingDir, BackupDirName, fmt.Sprintf("%s_%s", label, stamp))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}
	return dir, nil
}

func (b *Backupper) backupDirectory(command, workingDir string) (*BackupResult, error) {
	target := resolveTarget(command, workingDir)
	if target == "" {
		return nil, fmt.Errorf("cannot determine backup target for %q", command)
	}
	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("stat backup target: %w", err)
	}

	dest, err := b.backupDir(workingDir, filepath.Base(target))
	if err != nil {
		return nil, err
	}

	copied := filepath.Join(dest, filepath.Base(target))
	if info.IsDir() {
		err = copyTree(target, copied)
	} else {
		err = copyFile(target, copied, info.Mode())
	}
	if err != nil {
		return nil, fmt.Errorf("copy %s: %w", target, err)
	}

	b.logger.Info("Backed up %s to %s", target, dest)
	return &BackupResult{
		Strategy:       ports.BackupDirectory,
		Location:       dest,
		RestoreCommand: fmt.Sprintf("cp -a %s %s", copied, target),
	}, nil
}

func (b *Backupper) backupFiles(command, workingDir string) (*BackupResult, error) {
	target := resolveTarget(command, workingDir)
	if target == "" {
		return nil, fmt.Errorf("cannot determine backup target for %q", command)
	}
	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("stat backup target: %w", err)
	}
	if info.IsDir() {
		return b.backupDirectory(command, workingDir)
	}

	dest, err := b.backupDir(workingDir, filepath.Base(target))
	if err != nil {
		return nil, err
	}
	copied := filepath.Join(dest, filepath.Base(target))
	if err := copyFile(target, copied, info.Mode()); err != nil {
		return nil, fmt.Errorf("copy %s: %w", target, err)
	}

	b.logger.Info("Backed up %s to %s", target, dest)
	return &BackupResult{
		Strategy:       ports.BackupFile,
		Location:       dest,
		RestoreCommand: fmt.Sprintf("cp %s %s", copied, target),
	}, nil
}

type attrEntry struct {
	Path string `json:"path"`
	Mode string `json:"mode,omitempty"`
	UID  int    `json:"uid,omitempty"`
	GID  int    `json:"gid,omitempty"`
}

// snapshotAttrs records file modes or ownership as JSON before a recursive
// chmod/chown. Restoration is manual, driven by the snapshot content.
func (b *Backupper) snapshotAttrs(command, workingDir, kind string) (*BackupResult, error) {
	target := resolveTarget(command, workingDir)
	if target == "" {
		target = workingDir
	}

	var entries []attrEntry
	err := filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		entry := attrEntry{Path: path}
		if kind == "permissions" {
			entry.Mode = fmt.Sprintf("%04o", info.Mode().Perm())
		} else if stat, ok := info.Sys().(*syscall.Stat_t); ok {
			entry.UID = int(stat.Uid)
			entry.GID = int(stat.Gid)
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	dest, err := b.backupDir(workingDir, kind)
	if err != nil {
		return nil, err
	}
	snapshotPath := filepath.Join(dest, kind+".json")
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(snapshotPath, data, 0o644); err != nil {
		return nil, err
	}

	strategy := ports.BackupPermissions
	if kind == "ownership" {
		strategy = ports.BackupOwnership
	}
	b.logger.Info("Snapshotted %s of %s (%d entries) to %s", kind, target, len(entries), snapshotPath)
	return &BackupResult{Strategy: strategy, Location: snapshotPath}, nil
}

func (b *Backupper) gitStash(ctx context.Context, workingDir string) (*BackupResult, error) {
	stamp := b.now().Format("20060102_150405")
	message := "fixpoint-backup-" + stamp
	out, err := b.runner(ctx, workingDir, "git", "stash", "push", "--include-untracked", "-m", message)
	if err != nil {
		return nil, fmt.Errorf("git stash: %s: %w", out, err)
	}
	if strings.Contains(out, "No local changes") {
		return &BackupResult{Strategy: ports.BackupGitStash, Location: ""}, nil
	}
	b.logger.Info("Stashed working tree as %s", message)
	return &BackupResult{
		Strategy:       ports.BackupGitStash,
		Location:       message,
		RestoreCommand: "git stash pop",
	}, nil
}

func (b *Backupper) gitBackupBranch(ctx context.Context, workingDir string) (*BackupResult, error) {
	stamp := b.now().Format("20060102_150405")
	branch := "fixpoint-backup-" + stamp
	if out, err := b.runner(ctx, workingDir, "git", "branch", branch); err != nil {
		return nil, fmt.Errorf("git branch: %s: %w", out, err)
	}
	b.logger.Info("Created backup branch %s", branch)
	return &BackupResult{
		Strategy:       ports.BackupGitBranch,
		Location:       branch,
		RestoreCommand: "git reset --hard " + branch,
	}, nil
}

// resourceListing captures the current state of the resources a prune-style
// command is about to remove.
func (b *Backupper) resourceListing(ctx context.Context, command, workingDir string) (*BackupResult, error) {
	listing := ""
	switch {
	case strings.Contains(command, "docker volume"):
		out, _ := b.runner(ctx, workingDir, "docker", "volume", "ls")
		listing = out
	case strings.Contains(command, "docker"):
		out, _ := b.runner(ctx, workingDir, "docker", "ps", "-a")
		images, _ := b.runner(ctx, workingDir, "docker", "images")
		listing = out + "\n\n" + images
	default:
		listing = "no listing available for: " + command
	}

	dest, err := b.backupDir(workingDir, "resources")
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dest, "listing.txt")
	if err := os.WriteFile(path, []byte(listing), 0o644); err != nil {
		return nil, err
	}
	b.logger.Info("Recorded resource listing to %s", path)
	return &BackupResult{Strategy: ports.BackupResourceListing, Location: path}, nil
}

func resolveTarget(command, workingDir string) string {
	target := TargetOf(command)
	if target == "" {
		return ""
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(workingDir, target)
	}
	return filepath.Clean(target)
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	_, err = io.Copy(out, in)
	return err
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		return copyFile(path, target, info.Mode())
	})
}
