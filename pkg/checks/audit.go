package checks

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/user/sysguard/pkg/engine"
)

const (
	defaultSSHPort = "22"
	// 54 weekly rotations keep roughly six months of logs.
	minRotations = 54
)

// SensitiveFiles must each carry a write or attribute audit watch.
var SensitiveFiles = []string{
	"/etc/passwd",
	"/etc/shadow",
	"/etc/sudoers",
	"/etc/group",
	"/etc/ssh/sshd_config",
	"/var/log/lastlog",
	"/etc/profile",
	"/etc/sysctl.conf",
}

var watchRulePattern = regexp.MustCompile(`^-w\s+(\S+)\s+-p\s+(\S+)`)

// Audit covers remote access hardening, logging daemons and audit rules.
type Audit struct {
	Locale Locale
}

func (Audit) ID() string     { return "audit" }
func (Audit) Title() string  { return "Remote access / system audit / audit content" }
func (Audit) Keys() []string { return []string{"A19", "B19"} }

type auditFacts struct {
	SSHPortChanged   bool
	SSHSyslog        bool
	LogRotationOK    bool
	SSHDRunning      bool
	RsyslogRunning   bool
	AuditdRunning    bool
	SensitiveFilesOK bool
}

func (c Audit) Evaluate(ctx context.Context, env engine.Env) engine.Fragment {
	var af auditFacts

	if cfg, ok := readFile(ctx, env, "/etc/ssh/sshd_config"); ok {
		af.SSHPortChanged, af.SSHSyslog = parseSSHDConfig(cfg)
	}
	if cfg, ok := readFile(ctx, env, "/etc/logrotate.conf"); ok {
		af.LogRotationOK = parseLogrotate(cfg)
	}

	af.SSHDRunning = c.serviceRunning(ctx, env, "sshd")
	af.RsyslogRunning = c.serviceRunning(ctx, env, "rsyslog")
	af.AuditdRunning = c.serviceRunning(ctx, env, "auditd")

	if rules, ok := runCommand(ctx, env, "auditctl -l"); ok {
		af.SensitiveFilesOK = allWatched(watchedFiles(rules))
	}

	frag := engine.Fragment{}
	frag.Add("A19", c.Title())
	frag.Add("B19", engine.Checklist{
		engine.Checked(af.RsyslogRunning, "System log daemon (syslog) is running"),
		engine.Checked(af.AuditdRunning, "Audit daemon (auditd) is running"),
		engine.Checked(af.SSHSyslog, "SSH logins are sent to syslog"),
		engine.Checked(af.LogRotationOK, "Audit records are kept for 6 months"),
		engine.Unchecked("Audit records are forwarded to a separate log store"),
		engine.Checked(af.SensitiveFilesOK, "Account, audit policy, permission and login changes are audited"),
		engine.Checked(af.SSHDRunning, "SSH is enabled"),
		engine.Checked(af.SSHPortChanged, "SSH does not listen on the default port"),
	}.String())
	return frag
}

func (c Audit) serviceRunning(ctx context.Context, env engine.Env, name string) bool {
	out, ok := runCommand(ctx, env, "service "+name+" status")
	return ok && c.Locale.isRunning(out)
}

func parseSSHDConfig(text string) (portChanged, syslog bool) {
	for _, line := range lines(text) {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Port") {
			if fields := strings.Fields(line); len(fields) > 1 && fields[1] != defaultSSHPort {
				portChanged = true
			}
		}
		if strings.HasPrefix(line, "SyslogFacility AUTH") {
			syslog = true
		}
	}
	return portChanged, syslog
}

// parseLogrotate only considers the first global rotate directive.
func parseLogrotate(text string) bool {
	for _, line := range lines(text) {
		if !strings.HasPrefix(line, "rotate ") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return false
		}
		n, err := strconv.Atoi(fields[1])
		return err == nil && n >= minRotations
	}
	return false
}

// watchedFiles returns the sensitive files whose watch rule includes write or
// attribute-change permission. Trailing rule options such as -k are ignored.
func watchedFiles(rules string) map[string]bool {
	watched := make(map[string]bool)
	for _, line := range lines(rules) {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "-w") {
			continue
		}
		m := watchRulePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		path, perms := m[1], m[2]
		if isSensitive(path) && strings.ContainsAny(perms, "wa") {
			watched[path] = true
		}
	}
	return watched
}

func isSensitive(path string) bool {
	for _, f := range SensitiveFiles {
		if f == path {
			return true
		}
	}
	return false
}

func allWatched(watched map[string]bool) bool {
	for _, f := range SensitiveFiles {
		if !watched[f] {
			return false
		}
	}
	return true
}
