package checks

import (
	"context"
	"strings"

	"github.com/user/sysguard/pkg/engine"
)

const chkconfigFields = 8

// extraServices must all be disabled for the minimum-services rule.
var extraServices = []string{
	"bluetooth", "rwho", "sh", "rsh", "rexec", "sendmail", "tftp", "http", "nfs", "smtp",
}

// Service audits runlevel enablement reported by chkconfig.
type Service struct {
	Locale Locale
}

func (Service) ID() string     { return "service" }
func (Service) Title() string  { return "Disable services" }
func (Service) Keys() []string { return []string{"A15", "B15", "C15"} }

// serviceFacts records which audited services are enabled in the multi-user runlevels.
type serviceFacts struct {
	Mail          bool // sendmail, postfix
	FTP           bool // ftp, vsftpd
	Telnet        bool
	Rlogin        bool
	NetBIOS       bool
	DHCP          bool // dhcpd
	SMB           bool // smb, samba
	SNMP          bool // snmpd
	RemoteDesktop bool // xdmcp, vncserver
	// ExtraEnabled lists enabled extraServices in declaration order.
	ExtraEnabled []string
}

func (s *serviceFacts) enable(name string) {
	switch name {
	case "sendmail", "postfix":
		s.Mail = true
	case "ftp", "vsftpd":
		s.FTP = true
	case "telnet":
		s.Telnet = true
	case "rlogin":
		s.Rlogin = true
	case "netbios":
		s.NetBIOS = true
	case "dhcpd":
		s.DHCP = true
	case "smb", "samba":
		s.SMB = true
	case "snmpd":
		s.SNMP = true
	case "xdmcp", "vncserver":
		s.RemoteDesktop = true
	}
}

func (c Service) Evaluate(ctx context.Context, env engine.Env) engine.Fragment {
	var sf serviceFacts
	if out, ok := runCommand(ctx, env, "chkconfig --list"); ok {
		sf = c.parseChkconfig(out)
	}

	remarks := ""
	if len(sf.ExtraEnabled) > 0 {
		remarks = "The following services are not disabled: " + strings.Join(sf.ExtraEnabled, ", ")
	}

	frag := engine.Fragment{}
	frag.Add("A15", c.Title())
	frag.Add("B15", engine.Checklist{
		engine.Checked(!sf.Mail, "E-Mail"),
		engine.Checked(!sf.FTP, "FTP"),
		engine.Checked(!sf.Telnet, "telnet"),
		engine.Checked(!sf.Rlogin, "rlogin"),
		engine.Checked(!sf.NetBIOS, "NetBIOS"),
		engine.Checked(!sf.DHCP, "DHCP"),
		engine.Checked(!sf.SMB, "SMB"),
		engine.Checked(!sf.SNMP, "SNMPv3 and below"),
		engine.Checked(!sf.RemoteDesktop, "Remote desktop"),
		engine.Checked(len(sf.ExtraEnabled) == 0, "Other non-essential services are disabled"),
	}.String())
	frag.Add("C15", remarks)
	return frag
}

func (c Service) parseChkconfig(out string) serviceFacts {
	var sf serviceFacts
	enabled := make(map[string]bool)
	for _, line := range lines(out) {
		name, levels, ok := c.parseRunlevels(line)
		if !ok {
			continue
		}
		// Columns 2 through 5 of the 0-6 runlevel table.
		if levels[2] && levels[3] && levels[4] && levels[5] {
			enabled[name] = true
			sf.enable(name)
		}
	}
	for _, name := range extraServices {
		if enabled[name] {
			sf.ExtraEnabled = append(sf.ExtraEnabled, name)
		}
	}
	return sf
}

// parseRunlevels splits "name\t0:off\t1:off\t...\t6:off". Lines without exactly
// seven runlevel columns are ignored. A column whose status is not an off
// keyword counts as enabled.
func (c Service) parseRunlevels(line string) (string, [7]bool, bool) {
	var levels [7]bool
	var items []string
	for _, item := range strings.Split(line, "\t") {
		if strings.TrimSpace(item) != "" {
			items = append(items, strings.TrimSpace(item))
		}
	}
	if len(items) != chkconfigFields {
		return "", levels, false
	}
	for i, item := range items[1:] {
		levels[i] = true
		if _, status, found := strings.Cut(item, ":"); found && c.Locale.isOff(status) {
			levels[i] = false
		}
	}
	return items[0], levels, true
}
