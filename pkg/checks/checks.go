// Package checks holds the hardening rules evaluated by a scan. Each check
// parses loosely structured host text into an explicit fact struct and renders
// a checklist from it; parsing never fails, it falls back to the rule default.
package checks

import (
	"context"
	"strings"

	"github.com/user/sysguard/pkg/engine"
	"go.uber.org/zap"
)

// Locale holds the host-language words printed by chkconfig and service.
type Locale struct {
	// OffKeywords mark a chkconfig runlevel as disabled.
	OffKeywords []string `mapstructure:"off_keywords" yaml:"off_keywords"`
	// RunningKeywords mark `service <name> status` output as running.
	RunningKeywords []string `mapstructure:"running_keywords" yaml:"running_keywords"`
	// StoppedKeywords override a running keyword, e.g. "is not running".
	StoppedKeywords []string `mapstructure:"stopped_keywords" yaml:"stopped_keywords"`
}

// DefaultLocale understands English and zh_CN output.
func DefaultLocale() Locale {
	return Locale{
		OffKeywords:     []string{"off", "关闭"},
		RunningKeywords: []string{"running", "正在运行"},
		StoppedKeywords: []string{"not running"},
	}
}

func (l Locale) isOff(status string) bool {
	for _, k := range l.OffKeywords {
		if status == k {
			return true
		}
	}
	return false
}

func (l Locale) isRunning(output string) bool {
	for _, k := range l.StoppedKeywords {
		if k != "" && strings.Contains(output, k) {
			return false
		}
	}
	for _, k := range l.RunningKeywords {
		if k != "" && strings.Contains(output, k) {
			return true
		}
	}
	return false
}

// Default returns the full catalogue in report row order.
func Default(locale Locale) *engine.Catalogue {
	return engine.MustCatalogue(
		OS{},
		IP{},
		UserMgmt{},
		PasswdComplexity{},
		OperationTimeout{},
		Port{},
		Service{Locale: locale},
		Audit{Locale: locale},
		IPTables{},
		CommandHistory{},
	)
}

// readFile returns the file text, or ok=false after logging the failure.
func readFile(ctx context.Context, env engine.Env, path string) (string, bool) {
	out, err := env.Facts.ReadFile(ctx, path)
	if err != nil {
		env.Logger.Warn("Fact unavailable; using rule default", zap.String("source", path), zap.Error(err))
		return "", false
	}
	return out, true
}

func runCommand(ctx context.Context, env engine.Env, line string) (string, bool) {
	out, err := env.Facts.RunCommand(ctx, line, 0)
	if err != nil {
		env.Logger.Warn("Fact unavailable; using rule default", zap.String("source", line), zap.Error(err))
		return "", false
	}
	return out, true
}

func parseMismatch(env engine.Env, source, expected string) {
	env.Logger.Debug("Expected pattern not found; using rule default",
		zap.String("source", source), zap.String("pattern", expected))
}

// lines splits text on newlines, dropping a trailing carriage return from each.
func lines(text string) []string {
	out := strings.Split(text, "\n")
	for i, l := range out {
		out[i] = strings.TrimSuffix(l, "\r")
	}
	return out
}
