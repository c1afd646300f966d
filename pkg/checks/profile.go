package checks

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/user/sysguard/pkg/engine"
)

const (
	profilePath = "/etc/profile"

	maxTimeoutSeconds = 600
	maxHistoryLines   = 5
	defaultHistory    = 50000
)

var (
	tmoutPattern        = regexp.MustCompile(`TMOUT=(\d+)`)
	histSizePattern     = regexp.MustCompile(`HISTSIZE=(\d+)`)
	histFileSizePattern = regexp.MustCompile(`HISTFILESIZE=(\d+)`)
)

// OperationTimeout requires idle shells to be logged out within 10 minutes.
type OperationTimeout struct{}

func (OperationTimeout) ID() string     { return "operation-timeout" }
func (OperationTimeout) Title() string  { return "Login terminal operation timeout lock" }
func (OperationTimeout) Keys() []string { return []string{"A11", "B11"} }

func (c OperationTimeout) Evaluate(ctx context.Context, env engine.Env) engine.Fragment {
	var ok bool
	if profile, read := readFile(ctx, env, profilePath); read {
		if seconds, found := parseTimeout(profile); found {
			ok = seconds <= maxTimeoutSeconds
		} else {
			parseMismatch(env, profilePath, tmoutPattern.String())
		}
	}

	frag := engine.Fragment{}
	frag.Add("A11", c.Title())
	frag.Add("B11", engine.Checklist{
		engine.Checked(ok, "Operation timeout is 10 minutes or less"),
	}.String())
	return frag
}

// parseTimeout scans the profile from the bottom up so the last TMOUT
// assignment in the file wins. A value too large to parse is not found.
func parseTimeout(text string) (int, bool) {
	ls := lines(text)
	for i := len(ls) - 1; i >= 0; i-- {
		m := tmoutPattern.FindStringSubmatch(strings.TrimSpace(ls[i]))
		if m == nil {
			continue
		}
		v, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, false
		}
		return v, true
	}
	return 0, false
}

// CommandHistory requires shell history to be effectively disabled.
type CommandHistory struct{}

func (CommandHistory) ID() string     { return "command-history" }
func (CommandHistory) Title() string  { return "Command history" }
func (CommandHistory) Keys() []string { return []string{"A25", "B25"} }

type historyFacts struct {
	Size     int
	FileSize int
}

func (c CommandHistory) Evaluate(ctx context.Context, env engine.Env) engine.Fragment {
	hf := historyFacts{Size: defaultHistory, FileSize: defaultHistory}
	if profile, ok := readFile(ctx, env, profilePath); ok {
		hf = parseHistory(profile)
	}

	frag := engine.Fragment{}
	frag.Add("A25", c.Title())
	frag.Add("B25", engine.Checklist{
		engine.Checked(hf.Size <= maxHistoryLines && hf.FileSize <= maxHistoryLines, "Shell command history is removed"),
	}.String())
	return frag
}

// parseHistory reads HISTSIZE and HISTFILESIZE outside comments; later
// assignments override earlier ones.
func parseHistory(text string) historyFacts {
	hf := historyFacts{Size: defaultHistory, FileSize: defaultHistory}
	for _, line := range lines(text) {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		if v, ok := submatchInt(histSizePattern, line); ok {
			hf.Size = v
		}
		if v, ok := submatchInt(histFileSizePattern, line); ok {
			hf.FileSize = v
		}
	}
	return hf
}

func submatchInt(re *regexp.Regexp, line string) (int, bool) {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return v, true
}
