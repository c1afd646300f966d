package checks

import (
	"context"
	"net/netip"
	"strings"

	"github.com/user/sysguard/pkg/engine"
	"github.com/user/sysguard/pkg/facts"
	"go.uber.org/zap"
)

const loopbackIPv4 = "127.0.0.1"

// OS records the distribution banner from /etc/issue.
type OS struct{}

func (OS) ID() string     { return "os" }
func (OS) Title() string  { return "Operating system" }
func (OS) Keys() []string { return []string{"A4", "B4"} }

func (c OS) Evaluate(ctx context.Context, env engine.Env) engine.Fragment {
	frag := engine.Fragment{}
	frag.Add("A4", c.Title())

	issue, _ := readFile(ctx, env, "/etc/issue")
	frag.Add("B4", normalizeIssue(issue))
	return frag
}

func normalizeIssue(text string) string {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "\r", " ")
	return strings.ReplaceAll(text, "\n", " ")
}

// IP lists the host's non-loopback IPv4 addresses.
type IP struct{}

func (IP) ID() string     { return "ip" }
func (IP) Title() string  { return "Device IP" }
func (IP) Keys() []string { return []string{"A5", "B5"} }

func (c IP) Evaluate(ctx context.Context, env engine.Env) engine.Fragment {
	frag := engine.Fragment{}
	frag.Add("A5", c.Title())

	ifaces, err := env.Facts.Interfaces(ctx)
	if err != nil {
		env.Logger.Warn("Fact unavailable; using rule default", zap.String("source", "interfaces"), zap.Error(err))
	}
	frag.Add("B5", strings.Join(ipv4Addresses(ifaces), ";"))
	return frag
}

// ipv4Addresses keeps IPv4 addresses other than 127.0.0.1, in interface order.
// Addresses may carry a prefix length.
func ipv4Addresses(ifaces []facts.Interface) []string {
	var out []string
	for _, iface := range ifaces {
		for _, raw := range iface.Addrs {
			host, _, _ := strings.Cut(strings.TrimSpace(raw), "/")
			addr, err := netip.ParseAddr(host)
			if err != nil || !addr.Is4() {
				continue
			}
			if s := addr.String(); s != loopbackIPv4 {
				out = append(out, s)
			}
		}
	}
	return out
}
