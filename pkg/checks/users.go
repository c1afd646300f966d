package checks

import (
	"context"
	"strings"

	"github.com/user/sysguard/pkg/engine"
	"go.uber.org/zap"
)

const expectedUmask = "0022"

// UserMgmt audits the default umask and the accounts that can log in.
type UserMgmt struct{}

func (UserMgmt) ID() string     { return "user-mgmt" }
func (UserMgmt) Title() string  { return "User management" }
func (UserMgmt) Keys() []string { return []string{"A8", "B8", "B9", "C9"} }

type userFacts struct {
	UmaskOK bool
	// LoginAccounts are the passwd lines with an interactive shell.
	LoginAccounts []string
	// PasswdRead is false when /etc/passwd could not be collected.
	PasswdRead bool
}

func (f userFacts) defaultRootRemoved() bool {
	if !f.PasswdRead {
		return false
	}
	for _, line := range f.LoginAccounts {
		if strings.HasPrefix(strings.TrimSpace(line), "root") {
			return false
		}
	}
	return true
}

func (c UserMgmt) Evaluate(ctx context.Context, env engine.Env) engine.Fragment {
	var uf userFacts

	if out, err := env.Facts.ShellBuiltin(ctx, "umask"); err != nil {
		env.Logger.Warn("Fact unavailable; using rule default", zap.String("source", "umask"), zap.Error(err))
	} else {
		uf.UmaskOK = strings.TrimSpace(out) == expectedUmask
		if !uf.UmaskOK {
			parseMismatch(env, "umask", expectedUmask)
		}
	}

	if passwd, ok := readFile(ctx, env, "/etc/passwd"); ok {
		uf.PasswdRead = true
		uf.LoginAccounts = loginAccounts(passwd)
	}

	frag := engine.Fragment{}
	frag.Add("A8", c.Title())
	frag.Add("B8", engine.Checklist{
		engine.Unchecked("Expired, unused and hidden accounts are removed or locked"),
		engine.Checked(uf.UmaskOK, "Every user has permissions set as required"),
	}.String())
	frag.Add("B9", engine.Checklist{
		engine.Checked(uf.defaultRootRemoved(), "Default account names such as root, superadmin or administrator are not used"),
	}.String())
	frag.Add("C9", strings.Join(uf.LoginAccounts, "\n"))
	return frag
}

// loginAccounts drops comments, blank lines and accounts whose shell is
// /nologin or /false, returning the rest verbatim.
func loginAccounts(passwd string) []string {
	var out []string
	for _, line := range lines(strings.TrimSpace(passwd)) {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if strings.HasSuffix(trimmed, "/nologin") || strings.HasSuffix(trimmed, "/false") {
			continue
		}
		out = append(out, line)
	}
	return out
}
