package checks

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/user/sysguard/pkg/engine"
)

const (
	minPasswordLen     = 8
	maxPasswordAgeDays = 180

	defaultMinLen  = 0
	defaultMaxDays = 99999

	cracklibPrefix = "password requisite pam_cracklib"
)

var creditPattern = regexp.MustCompile(`([dulo]credit)\s*=\s*(-\d+)`)

// PasswdComplexity audits password length, character classes and rotation.
type PasswdComplexity struct{}

func (PasswdComplexity) ID() string     { return "passwd-complexity" }
func (PasswdComplexity) Title() string  { return "Password complexity" }
func (PasswdComplexity) Keys() []string { return []string{"A10", "B10"} }

// credits are pam_cracklib minimum-class settings; an absent credit is 0.
type credits struct {
	U, L, D, O int
}

// strong requires at least 2 upper, 1 lower, 4 digit and 1 other character.
func (c credits) strong() bool {
	return c.U <= -2 && c.L <= -1 && c.D <= -4 && c.O <= -1
}

type passwordPolicy struct {
	MinLen  int
	MaxDays int
	Credits credits
}

func (c PasswdComplexity) Evaluate(ctx context.Context, env engine.Env) engine.Fragment {
	policy := passwordPolicy{MinLen: defaultMinLen, MaxDays: defaultMaxDays}

	if defs, ok := readFile(ctx, env, "/etc/login.defs"); ok {
		policy.MinLen, policy.MaxDays = parseLoginDefs(defs)
	}
	if auth, ok := readFile(ctx, env, "/etc/pam.d/system-auth"); ok {
		var found bool
		policy.Credits, found = parseCracklibCredits(auth)
		if !found {
			parseMismatch(env, "/etc/pam.d/system-auth", cracklibPrefix)
		}
	}

	frag := engine.Fragment{}
	frag.Add("A10", c.Title())
	frag.Add("B10", engine.Checklist{
		engine.Checked(policy.MinLen >= minPasswordLen, "Password length is at least 8 characters"),
		engine.Checked(policy.Credits.strong(), "Passwords mix letters, digits and special characters"),
		engine.Unchecked("Password differs from the user name"),
		engine.Checked(policy.MaxDays <= maxPasswordAgeDays, "Passwords are changed at least every 180 days"),
	}.String())
	return frag
}

// parseLoginDefs reads PASS_MIN_LEN and PASS_MAX_DAYS. Values are the second
// non-empty tab separated token; anything unparseable keeps the default.
func parseLoginDefs(text string) (minLen, maxDays int) {
	minLen, maxDays = defaultMinLen, defaultMaxDays
	for _, line := range lines(strings.TrimSpace(text)) {
		switch {
		case strings.HasPrefix(line, "PASS_MIN_LEN"):
			if v, ok := loginDefsValue(line); ok {
				minLen = v
			}
		case strings.HasPrefix(line, "PASS_MAX_DAYS"):
			if v, ok := loginDefsValue(line); ok {
				maxDays = v
			}
		}
	}
	return minLen, maxDays
}

func loginDefsValue(line string) (int, bool) {
	var tokens []string
	for _, tok := range strings.Split(line, "\t") {
		if strings.TrimSpace(tok) != "" {
			tokens = append(tokens, strings.TrimSpace(tok))
		}
	}
	if len(tokens) < 2 {
		return 0, false
	}
	v, err := strconv.ParseUint(tokens[1], 10, 32)
	if err != nil {
		return 0, false
	}
	return int(v), true
}

// parseCracklibCredits reads the credits of the first pam_cracklib requisite
// line. Runs of whitespace between the leading words are treated as one space.
func parseCracklibCredits(text string) (credits, bool) {
	var c credits
	for _, line := range lines(strings.TrimSpace(text)) {
		if !strings.HasPrefix(strings.Join(strings.Fields(line), " "), cracklibPrefix) {
			continue
		}
		for _, m := range creditPattern.FindAllStringSubmatch(line, -1) {
			v, err := strconv.Atoi(m[2])
			if err != nil {
				v = 0
			}
			switch m[1] {
			case "ucredit":
				c.U = v
			case "lcredit":
				c.L = v
			case "dcredit":
				c.D = v
			case "ocredit":
				c.O = v
			}
		}
		return c, true
	}
	return c, false
}
