package checks

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/user/sysguard/pkg/engine"
)

// HighRiskPorts are the RPC, NetBIOS, SMB and RDP ports that must be closed.
var HighRiskPorts = []int{135, 137, 138, 139, 445, 3389}

var whitelistCIDRPattern = regexp.MustCompile(`(\d{1,3}.\d{1,3}.\d{1,3}.\d{1,3}/(\d{1,2})?)`)

// Port probes each high-risk port by binding it on loopback. A successful
// bind means nothing listens there, so the port passes as closed.
type Port struct{}

func (Port) ID() string     { return "port" }
func (Port) Title() string  { return "High-risk port closure" }
func (Port) Keys() []string { return []string{"A14", "B14"} }

func (c Port) Evaluate(ctx context.Context, env engine.Env) engine.Fragment {
	list := make(engine.Checklist, 0, len(HighRiskPorts))
	for _, port := range HighRiskPorts {
		free := env.Facts.PortFree(ctx, port)
		list = append(list, engine.Checked(free, fmt.Sprintf("Close port %d", port)))
	}

	frag := engine.Fragment{}
	frag.Add("A14", c.Title())
	frag.Add("B14", list.String())
	return frag
}

// IPTables dumps the source ranges of the iptables whitelist chain.
type IPTables struct{}

func (IPTables) ID() string     { return "iptables" }
func (IPTables) Title() string  { return "Terminal access method and network address range" }
func (IPTables) Keys() []string { return []string{"A21", "C21"} }

func (c IPTables) Evaluate(ctx context.Context, env engine.Env) engine.Fragment {
	var cidrs []string
	if rules, ok := readFile(ctx, env, "/etc/sysconfig/iptables"); ok {
		cidrs = whitelistCIDRs(rules)
	}

	frag := engine.Fragment{}
	frag.Add("A21", c.Title())
	frag.Add("C21", strings.Join(cidrs, ";"))
	return frag
}

func whitelistCIDRs(rules string) []string {
	var out []string
	for _, line := range lines(rules) {
		if !strings.HasPrefix(line, "-A whitelist") {
			continue
		}
		if m := whitelistCIDRPattern.FindStringSubmatch(line); m != nil {
			out = append(out, m[1])
		}
	}
	return out
}
