// Package danger classifies shell commands against a static registry of known
// destructive operations and produces the pre-execution backups that make
// them recoverable.
package danger

import "fixpoint/internal/agent/ports"

// CommandSpec describes one known dangerous command shape.
type CommandSpec struct {
	// Pattern is matched against the normalized command: exact match first,
	// then longest prefix, then leading token.
	Pattern string
	// Type groups commands for "always allow this type" preferences.
	Type string
	Risk ports.RiskLevel
	// Backup is the snapshot strategy taken before first execution.
	Backup       ports.BackupStrategy
	Warning      string
	Consequences []string
	Alternatives []string
	// Rollback reports whether the backup supports restoration.
	Rollback bool
}

// specs is the closed registry of dangerous command shapes, ordered roughly by
// severity. Matching is deterministic: the same command always classifies the
// same way.
var specs = []CommandSpec{
	{
		Pattern: "rm -rf /", Type: "filesystem_wipe", Risk: ports.RiskCritical,
		Backup:  ports.BackupNone,
		Warning: "Recursive deletion from the filesystem root destroys the system.",
		Consequences: []string{
			"Irreversible loss of system and user files",
		},
		Alternatives: []string{"Delete the specific directory you mean, with its full path"},
	},
	{
		Pattern: "git push --force", Type: "git_history_rewrite", Risk: ports.RiskCritical,
		Backup:  ports.BackupGitBranch,
		Warning: "Force-pushing rewrites remote history for everyone sharing the branch.",
		Consequences: []string{
			"Commits on the remote branch may be permanently lost",
			"Collaborators' local clones will diverge",
		},
		Alternatives: []string{"git push --force-with-lease"},
		Rollback:     true,
	},
	{
		Pattern: "git push -f", Type: "git_history_rewrite", Risk: ports.RiskCritical,
		Backup:       ports.BackupGitBranch,
		Warning:      "Force-pushing rewrites remote history for everyone sharing the branch.",
		Consequences: []string{"Commits on the remote branch may be permanently lost"},
		Alternatives: []string{"git push --force-with-lease"},
		Rollback:     true,
	},
	{
		Pattern: "git reset --hard", Type: "git_discard", Risk: ports.RiskHigh,
		Backup:       ports.BackupGitStash,
		Warning:      "A hard reset discards all uncommitted changes.",
		Consequences: []string{"Uncommitted work in the tree is lost"},
		Alternatives: []string{"git stash", "git reset --soft"},
		Rollback:     true,
	},
	{
		Pattern: "git clean -fd", Type: "git_discard", Risk: ports.RiskHigh,
		Backup:       ports.BackupGitStash,
		Warning:      "git clean removes untracked files permanently.",
		Consequences: []string{"Untracked files and directories are deleted"},
		Alternatives: []string{"git clean -nd to preview what would be removed"},
		Rollback:     true,
	},
	{
		Pattern: "rm -rf", Type: "recursive_delete", Risk: ports.RiskHigh,
		Backup:       ports.BackupDirectory,
		Warning:      "Recursive forced deletion cannot be undone without a backup.",
		Consequences: []string{"The target and everything under it is deleted"},
		Alternatives: []string{"Move the target aside instead of deleting it"},
		Rollback:     true,
	},
	{
		Pattern: "rm -r", Type: "recursive_delete", Risk: ports.RiskHigh,
		Backup:       ports.BackupDirectory,
		Warning:      "Recursive deletion cannot be undone without a backup.",
		Consequences: []string{"The target and everything under it is deleted"},
		Rollback:     true,
	},
	{
		Pattern: "chmod -R", Type: "permission_change", Risk: ports.RiskMedium,
		Backup:       ports.BackupPermissions,
		Warning:      "Recursive permission changes are hard to reverse without a snapshot.",
		Consequences: []string{"Every file under the target changes mode"},
		Rollback:     true,
	},
	{
		Pattern: "chown -R", Type: "ownership_change", Risk: ports.RiskMedium,
		Backup:       ports.BackupOwnership,
		Warning:      "Recursive ownership changes are hard to reverse without a snapshot.",
		Consequences: []string{"Every file under the target changes owner"},
		Rollback:     true,
	},
	{
		Pattern: "docker system prune", Type: "resource_prune", Risk: ports.RiskMedium,
		Backup:       ports.BackupResourceListing,
		Warning:      "Pruning removes stopped containers, dangling images and unused networks.",
		Consequences: []string{"Stopped containers and unused images are deleted"},
		Alternatives: []string{"docker image prune for images only"},
	},
	{
		Pattern: "docker volume rm", Type: "resource_prune", Risk: ports.RiskHigh,
		Backup:       ports.BackupResourceListing,
		Warning:      "Removing a volume deletes its data.",
		Consequences: []string{"All data stored in the volume is lost"},
	},
	{
		Pattern: "truncate", Type: "file_truncate", Risk: ports.RiskMedium,
		Backup:       ports.BackupFile,
		Warning:      "Truncating a file discards its contents.",
		Consequences: []string{"The file's previous contents are lost"},
		Rollback:     true,
	},
	{
		Pattern: "rm", Type: "file_delete", Risk: ports.RiskMedium,
		Backup:       ports.BackupFile,
		Warning:      "Deleting files cannot be undone without a backup.",
		Consequences: []string{"The listed files are removed"},
		Rollback:     true,
	},
	{
		Pattern: "dd", Type: "raw_write", Risk: ports.RiskCritical,
		Backup:       ports.BackupNone,
		Warning:      "dd writes raw bytes and can destroy disks when mistargeted.",
		Consequences: []string{"The output target is overwritten byte for byte"},
	},
	{
		Pattern: "mkfs", Type: "format", Risk: ports.RiskCritical,
		Backup:       ports.BackupNone,
		Warning:      "Formatting a filesystem destroys everything on it.",
		Consequences: []string{"All data on the device is erased"},
	},
	{
		Pattern: "shutdown", Type: "system_power", Risk: ports.RiskHigh,
		Backup:  ports.BackupNone,
		Warning: "Shutting the machine down interrupts every running process.",
	},
	{
		Pattern: "reboot", Type: "system_power", Risk: ports.RiskHigh,
		Backup:  ports.BackupNone,
		Warning: "Rebooting interrupts every running process.",
	},
	{
		Pattern: "kill -9", Type: "process_kill", Risk: ports.RiskMedium,
		Backup:       ports.BackupNone,
		Warning:      "SIGKILL gives the process no chance to clean up.",
		Alternatives: []string{"kill (SIGTERM) first"},
	},
	{
		Pattern: "drop database", Type: "database_drop", Risk: ports.RiskCritical,
		Backup:       ports.BackupNone,
		Warning:      "Dropping a database deletes all of its data.",
		Consequences: []string{"Every table and row in the database is lost"},
		Alternatives: []string{"Take a dump before dropping"},
	},
	{
		Pattern: "drop table", Type: "database_drop", Risk: ports.RiskCritical,
		Backup:       ports.BackupNone,
		Warning:      "Dropping a table deletes all of its data.",
		Consequences: []string{"Every row in the table is lost"},
	},
}

// Specs returns the registry contents for display and testing.
func Specs() []CommandSpec {
	out := make([]CommandSpec, len(specs))
	copy(out, specs)
	return out
}
