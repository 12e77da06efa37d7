package config

// DefaultAllowedPrograms lists the base programs execute_shell and the
// lint/format/test/scan/git/docker tools may spawn. The allowlist is matched
// against the first argv element after stripping any directory prefix.
func DefaultAllowedPrograms() []string {
	return []string{
		"ls", "cat", "head", "tail", "wc", "sort", "uniq", "cut", "tr",
		"grep", "rg", "find", "diff", "file", "stat", "du", "df",
		"echo", "date", "env", "which", "pwd", "basename", "dirname",
		"sed", "awk", "jq", "tar", "gzip", "gunzip", "zip", "unzip",
		"git", "gh", "docker",
		"go", "gofmt", "golangci-lint", "govulncheck",
		"python3", "pip3", "pip-audit", "ruff", "black", "pytest",
		"node", "npm", "npx", "yarn", "eslint", "prettier", "jest",
		"make", "cargo", "rustfmt", "clippy-driver",
		"curl", "mvn", "gradle",
	}
}

// DefaultBlockedSubstrings are rejected anywhere in a command, even when the
// base program is allowlisted. Matching is case-insensitive.
func DefaultBlockedSubstrings() []string {
	return []string{
		"rm -rf /",
		"rm -rf ~",
		"rm -fr /",
		":(){",
		"mkfs",
		"dd if=",
		"> /dev/sd",
		"chmod -r 777 /",
		"chown -r",
		"shutdown",
		"reboot",
		"init 0",
		"sudo ",
		"su -",
		"curl | sh",
		"curl | bash",
		"wget | sh",
		"| bash",
		"| sh",
		"/etc/passwd",
		"/etc/shadow",
		"ssh-keygen",
		"~/.ssh",
		"~/.aws",
		"history -c",
	}
}

// DefaultBlockedHosts are rejected as network targets in addition to the
// built-in loopback/private/link-local range checks.
func DefaultBlockedHosts() []string {
	return []string{
		"metadata.google.internal",
		"metadata.goog",
		"instance-data",
		"kubernetes.default.svc",
	}
}
