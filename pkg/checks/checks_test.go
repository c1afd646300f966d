package checks

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/sysguard/pkg/engine"
	"github.com/user/sysguard/pkg/facts"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const (
	loginDefs = "# Password aging controls:\n" +
		"PASS_MAX_DAYS\t90\n" +
		"PASS_MIN_DAYS\t0\n" +
		"PASS_MIN_LEN\t12\n" +
		"PASS_WARN_AGE\t7\n"

	systemAuth = "auth        required      pam_env.so\n" +
		"password requisite pam_cracklib.so try_first_pass retry=3 ucredit=-2 lcredit=-1 dcredit=-4 ocredit=-1\n" +
		"password    sufficient    pam_unix.so sha512 shadow nullok try_first_pass use_authtok\n"

	passwd = "root:x:0:0:root:/root:/bin/bash\n" +
		"bin:x:1:1:bin:/bin:/sbin/nologin\n" +
		"# legacy\n" +
		"ops:x:500:500::/home/ops:/bin/bash\n" +
		"nfsnobody:x:65534:65534::/var/lib/nfs:/bin/false\n"

	profile = "# /etc/profile\n" +
		"HISTSIZE=1000\n" +
		"TMOUT=900\n" +
		"export TMOUT\n" +
		"HISTSIZE=0\n" +
		"#HISTFILESIZE=9000\n" +
		"HISTFILESIZE=5\n" +
		"TMOUT=300\n"

	chkconfig = "auditd         \t0:off\t1:off\t2:on\t3:on\t4:on\t5:on\t6:off\n" +
		"sendmail       \t0:off\t1:off\t2:off\t3:off\t4:off\t5:off\t6:off\n" +
		"sshd           \t0:off\t1:off\t2:on\t3:on\t4:on\t5:on\t6:off\n" +
		"\n" +
		"xinetd based services:\n" +
		"\ttelnet:\ton\n"

	sshdConfig = "#Port 22\n" +
		"Port 2222\n" +
		"SyslogFacility AUTHPRIV\n" +
		"PermitRootLogin no\n"

	logrotate = "# rotate log files weekly\n" +
		"weekly\n" +
		"rotate 54\n" +
		"/var/log/wtmp {\n" +
		"    rotate 1\n" +
		"}\n"

	auditRules = "-w /etc/passwd -p wa -k identity\n" +
		"-w /etc/shadow -p wa -k identity\n" +
		"-w /etc/sudoers -p wa\n" +
		"-w /etc/group -p wa -k identity\n" +
		"-w /etc/ssh/sshd_config -p rwa\n" +
		"-w /var/log/lastlog -p wa -k logins\n" +
		"-w /etc/profile -p a\n" +
		"-w /etc/sysctl.conf -p w\n" +
		"-a always,exit -F arch=b64 -S adjtimex -k time-change\n"

	iptables = "*filter\n" +
		":whitelist - [0:0]\n" +
		"-A whitelist -s 10.10.0.0/16 -j ACCEPT\n" +
		"-A whitelist -s 192.168.1.0/24 -j ACCEPT\n" +
		"-A whitelist -s somehost -j ACCEPT\n" +
		"-A INPUT -s 172.16.0.0/12 -j ACCEPT\n" +
		"COMMIT\n"
)

func hardenedHost() *facts.Fake {
	return &facts.Fake{
		Files: map[string]string{
			"/etc/issue":              "CentOS release 6.10 (Final)\r\nKernel \\r on an \\m\n\n",
			"/etc/passwd":             passwd,
			"/etc/login.defs":         loginDefs,
			"/etc/pam.d/system-auth":  systemAuth,
			"/etc/profile":            profile,
			"/etc/ssh/sshd_config":    sshdConfig,
			"/etc/logrotate.conf":     logrotate,
			"/etc/sysconfig/iptables": iptables,
		},
		Commands: map[string]string{
			"chkconfig --list":       chkconfig,
			"service sshd status":    "openssh-daemon (pid  1520) is running...\n",
			"service rsyslog status": "rsyslogd (pid  1302) is running...\n",
			"service auditd status":  "auditd (pid  1280) is running...\n",
			"auditctl -l":            auditRules,
		},
		Builtins: map[string]string{"umask": "0022\n"},
		Ifaces: []facts.Interface{
			{Name: "lo", Addrs: []string{"127.0.0.1/8", "::1/128"}},
			{Name: "eth0", Addrs: []string{"10.0.0.5/24", "fe80::5054:ff:fe12:3456/64"}},
		},
	}
}

func testEnv(collector facts.Collector) (engine.Env, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return engine.Env{Facts: collector, Logger: zap.New(core)}, logs
}

func keysOf(frag engine.Fragment) []string {
	keys := make([]string, 0, len(frag))
	for k := range frag {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sorted(keys []string) []string {
	out := append([]string(nil), keys...)
	sort.Strings(out)
	return out
}

func TestDefault_CatalogueOrderAndKeys(t *testing.T) {
	cat := Default(DefaultLocale())

	var ids []string
	for _, c := range cat.Checks() {
		ids = append(ids, c.ID())
	}
	assert.Equal(t, []string{
		"os", "ip", "user-mgmt", "passwd-complexity", "operation-timeout",
		"port", "service", "audit", "iptables", "command-history",
	}, ids)
	assert.Equal(t, []string{
		"A4", "B4", "A5", "B5", "A8", "B8", "B9", "C9", "A10", "B10", "A11", "B11",
		"A14", "B14", "A15", "B15", "C15", "A19", "B19", "A21", "C21", "A25", "B25",
	}, cat.Keys())
}

func TestChecks_PopulateExactlyDeclaredKeys(t *testing.T) {
	hosts := map[string]*facts.Fake{
		"all facts available":   hardenedHost(),
		"no facts available":    {IfaceErr: assert.AnError},
		"empty facts available": {Files: map[string]string{}, Commands: map[string]string{"chkconfig --list": ""}},
	}
	for name, host := range hosts {
		t.Run(name, func(t *testing.T) {
			for _, chk := range Default(DefaultLocale()).Checks() {
				env, _ := testEnv(host)
				frag := chk.Evaluate(context.Background(), env)
				assert.Equal(t, sorted(chk.Keys()), keysOf(frag), chk.ID())
			}
		})
	}
}

func TestOS_NormalizesNewlines(t *testing.T) {
	env, _ := testEnv(hardenedHost())
	frag := OS{}.Evaluate(context.Background(), env)
	assert.Equal(t, "Operating system", frag["A4"])
	assert.Equal(t, `CentOS release 6.10 (Final)  Kernel \r on an \m`, frag["B4"])
}

func TestOS_Unavailable(t *testing.T) {
	env, logs := testEnv(&facts.Fake{})
	frag := OS{}.Evaluate(context.Background(), env)
	assert.Equal(t, "", frag["B4"])

	warn := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warn, 1)
	assert.Equal(t, "/etc/issue", warn[0].ContextMap()["source"])
}

func TestIP_ExcludesLoopback(t *testing.T) {
	env, _ := testEnv(&facts.Fake{Ifaces: []facts.Interface{
		{Addrs: []string{"10.0.0.5"}},
		{Addrs: []string{"127.0.0.1"}},
	}})
	frag := IP{}.Evaluate(context.Background(), env)
	assert.Equal(t, "10.0.0.5", frag["B5"])
}

func TestIP_KeepsIPv4InInterfaceOrder(t *testing.T) {
	env, _ := testEnv(hardenedHost())
	frag := IP{}.Evaluate(context.Background(), env)
	assert.Equal(t, "10.0.0.5", frag["B5"])

	got := ipv4Addresses([]facts.Interface{
		{Addrs: []string{"192.168.1.20/24", "garbage", "127.0.0.1/8"}},
		{Addrs: []string{"127.0.0.2/8", "2001:db8::1/64", " 172.17.0.1/16 "}},
	})
	assert.Equal(t, []string{"192.168.1.20", "127.0.0.2", "172.17.0.1"}, got)
}

func TestIP_InterfacesUnavailable(t *testing.T) {
	env, logs := testEnv(&facts.Fake{IfaceErr: assert.AnError})
	frag := IP{}.Evaluate(context.Background(), env)
	assert.Equal(t, "", frag["B5"])
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.WarnLevel).Len())
}

func TestUserMgmt(t *testing.T) {
	env, _ := testEnv(hardenedHost())
	frag := UserMgmt{}.Evaluate(context.Background(), env)

	assert.Equal(t, "[  ]Expired, unused and hidden accounts are removed or locked\n[✓]Every user has permissions set as required", frag["B8"])
	assert.Equal(t, "root:x:0:0:root:/root:/bin/bash\nops:x:500:500::/home/ops:/bin/bash", frag["C9"])
	assert.True(t, strings.HasPrefix(frag["B9"], "[✗]"), "interactive root account must fail")
}

func TestUserMgmt_NoRootLogin(t *testing.T) {
	host := hardenedHost()
	host.Files["/etc/passwd"] = "root:x:0:0:root:/root:/sbin/nologin\nops:x:500:500::/home/ops:/bin/bash\n"
	host.Builtins["umask"] = "0077\n"

	env, _ := testEnv(host)
	frag := UserMgmt{}.Evaluate(context.Background(), env)
	assert.True(t, strings.HasPrefix(frag["B9"], "[✓]"))
	assert.Contains(t, frag["B8"], "[✗]Every user")
	assert.Equal(t, "ops:x:500:500::/home/ops:/bin/bash", frag["C9"])
}

func TestUserMgmt_Unavailable(t *testing.T) {
	env, _ := testEnv(&facts.Fake{})
	frag := UserMgmt{}.Evaluate(context.Background(), env)
	assert.Contains(t, frag["B8"], "[✗]Every user")
	assert.True(t, strings.HasPrefix(frag["B9"], "[✗]"))
	assert.Equal(t, "", frag["C9"])
}

func TestParseLoginDefs(t *testing.T) {
	minLen, maxDays := parseLoginDefs(loginDefs)
	assert.Equal(t, 12, minLen)
	assert.Equal(t, 90, maxDays)

	minLen, maxDays = parseLoginDefs("PASS_MIN_LEN    8\nPASS_MAX_DAYS\tnever\n")
	assert.Equal(t, defaultMinLen, minLen, "space separated values are not tab tokens")
	assert.Equal(t, defaultMaxDays, maxDays)

	minLen, _ = parseLoginDefs("\tPASS_MIN_LEN\t8\n#PASS_MIN_LEN\t9\nPASS_MIN_LEN\t\t10\n")
	assert.Equal(t, 10, minLen)
}

func TestCredits_StrongCombination(t *testing.T) {
	tests := []struct {
		name string
		line string
		want bool
	}{
		{"required minimums", "password requisite pam_cracklib.so ucredit=-2 lcredit=-1 dcredit=-4 ocredit=-1", true},
		{"stricter than required", "password requisite pam_cracklib.so ucredit = -3 lcredit=-2 dcredit=-5 ocredit=-2", true},
		{"too few upper case", "password requisite pam_cracklib.so ucredit=-1 lcredit=-1 dcredit=-4 ocredit=-1", false},
		{"missing other credit", "password requisite pam_cracklib.so ucredit=-2 lcredit=-1 dcredit=-4", false},
		{"positive credits ignored", "password requisite pam_cracklib.so ucredit=2 lcredit=-1 dcredit=-4 ocredit=-1", false},
		{"aligned columns", "password    requisite     pam_cracklib.so ucredit=-2 lcredit=-1 dcredit=-4 ocredit=-1", true},
		{"no cracklib line", "password sufficient pam_unix.so", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := parseCracklibCredits(tt.line)
			assert.Equal(t, tt.want, c.strong())
		})
	}
}

func TestParseCracklibCredits_FirstLineOnly(t *testing.T) {
	c, found := parseCracklibCredits("password requisite pam_cracklib.so ucredit=-1\npassword requisite pam_cracklib.so ucredit=-5\n")
	require.True(t, found)
	assert.Equal(t, credits{U: -1}, c)
}

func TestPasswdComplexity_Hardened(t *testing.T) {
	env, _ := testEnv(hardenedHost())
	frag := PasswdComplexity{}.Evaluate(context.Background(), env)
	assert.Equal(t, "Password complexity", frag["A10"])
	assert.Equal(t, "[✓]Password length is at least 8 characters\n"+
		"[✓]Passwords mix letters, digits and special characters\n"+
		"[  ]Password differs from the user name\n"+
		"[✓]Passwords are changed at least every 180 days", frag["B10"])
}

func TestPasswdComplexity_SystemAuthUnreadable(t *testing.T) {
	host := hardenedHost()
	delete(host.Files, "/etc/pam.d/system-auth")

	env, logs := testEnv(host)
	frag := PasswdComplexity{}.Evaluate(context.Background(), env)

	list := strings.Split(frag["B10"], "\n")
	require.Len(t, list, 4)
	assert.True(t, strings.HasPrefix(list[0], "[✓]"), "length still evaluated")
	assert.True(t, strings.HasPrefix(list[1], "[✗]"), "combination defaults to fail")
	assert.True(t, strings.HasPrefix(list[3], "[✓]"), "rotation still evaluated")

	warn := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warn, 1)
	assert.Equal(t, "/etc/pam.d/system-auth", warn[0].ContextMap()["source"])
}

func TestPasswdComplexity_Defaults(t *testing.T) {
	env, _ := testEnv(&facts.Fake{})
	frag := PasswdComplexity{}.Evaluate(context.Background(), env)
	assert.Equal(t, 3, strings.Count(frag["B10"], "[✗]"))
}

func TestParseTimeout_LastAssignmentWins(t *testing.T) {
	v, ok := parseTimeout(profile)
	require.True(t, ok)
	assert.Equal(t, 300, v)

	env, _ := testEnv(hardenedHost())
	frag := OperationTimeout{}.Evaluate(context.Background(), env)
	assert.Equal(t, "[✓]Operation timeout is 10 minutes or less", frag["B11"])
}

func TestOperationTimeout_Fails(t *testing.T) {
	tests := map[string]*facts.Fake{
		"too long":   {Files: map[string]string{"/etc/profile": "TMOUT=300\nTMOUT=900\n"}},
		"absent":     {Files: map[string]string{"/etc/profile": "export PATH\n"}},
		"overflow":   {Files: map[string]string{"/etc/profile": "TMOUT=99999999999999999999999\n"}},
		"unreadable": {},
	}
	for name, host := range tests {
		t.Run(name, func(t *testing.T) {
			env, _ := testEnv(host)
			frag := OperationTimeout{}.Evaluate(context.Background(), env)
			assert.True(t, strings.HasPrefix(frag["B11"], "[✗]"))
		})
	}
}

func TestPort_BusyPortFails(t *testing.T) {
	host := hardenedHost()
	host.Busy = map[int]bool{3389: true}

	env, _ := testEnv(host)
	frag := Port{}.Evaluate(context.Background(), env)
	assert.Equal(t, "[✓]Close port 135\n[✓]Close port 137\n[✓]Close port 138\n"+
		"[✓]Close port 139\n[✓]Close port 445\n[✗]Close port 3389", frag["B14"])
}

func TestService_MailEnabledFails(t *testing.T) {
	host := hardenedHost()
	host.Commands["chkconfig --list"] = "sendmail\t0:off\t1:off\t2:on\t3:on\t4:on\t5:on\t6:on\n"

	env, _ := testEnv(host)
	frag := Service{Locale: DefaultLocale()}.Evaluate(context.Background(), env)

	list := strings.Split(frag["B15"], "\n")
	require.Len(t, list, 10)
	assert.Equal(t, "[✗]E-Mail", list[0])
	assert.Equal(t, "[✗]Other non-essential services are disabled", list[9])
	assert.Equal(t, "The following services are not disabled: sendmail", frag["C15"])
}

func TestService_AllOffPasses(t *testing.T) {
	env, _ := testEnv(hardenedHost())
	frag := Service{Locale: DefaultLocale()}.Evaluate(context.Background(), env)
	assert.NotContains(t, frag["B15"], "[✗]")
	assert.Equal(t, "", frag["C15"])
}

func TestService_ZhLocaleAndGroups(t *testing.T) {
	out := "vsftpd\t0:关闭\t1:关闭\t2:启用\t3:启用\t4:启用\t5:启用\t6:关闭\n" +
		"nfs\t0:关闭\t1:关闭\t2:启用\t3:启用\t4:启用\t5:启用\t6:关闭\n" +
		"rsh\t0:关闭\t1:关闭\t2:启用\t3:启用\t4:启用\t5:启用\t6:关闭\n" +
		"vncserver\t0:关闭\t1:关闭\t2:关闭\t3:启用\t4:启用\t5:启用\t6:关闭\n"
	sf := Service{Locale: DefaultLocale()}.parseChkconfig(out)
	assert.True(t, sf.FTP)
	assert.False(t, sf.RemoteDesktop, "runlevel 2 column is off")
	assert.Equal(t, []string{"rsh", "nfs"}, sf.ExtraEnabled)
}

func TestService_Unavailable(t *testing.T) {
	env, _ := testEnv(&facts.Fake{})
	frag := Service{Locale: DefaultLocale()}.Evaluate(context.Background(), env)
	assert.NotContains(t, frag["B15"], "[✗]")
	assert.Equal(t, "", frag["C15"])
}

func TestAudit_Hardened(t *testing.T) {
	env, _ := testEnv(hardenedHost())
	frag := Audit{Locale: DefaultLocale()}.Evaluate(context.Background(), env)
	assert.Equal(t, "[✓]System log daemon (syslog) is running\n"+
		"[✓]Audit daemon (auditd) is running\n"+
		"[✓]SSH logins are sent to syslog\n"+
		"[✓]Audit records are kept for 6 months\n"+
		"[  ]Audit records are forwarded to a separate log store\n"+
		"[✓]Account, audit policy, permission and login changes are audited\n"+
		"[✓]SSH is enabled\n"+
		"[✓]SSH does not listen on the default port", frag["B19"])
}

func TestAudit_Degraded(t *testing.T) {
	host := hardenedHost()
	host.Files["/etc/ssh/sshd_config"] = "Port 22\n"
	host.Files["/etc/logrotate.conf"] = "rotate 4\nrotate 60\n"
	host.Commands["service auditd status"] = "auditd is not running\n"
	host.Commands["service rsyslog status"] = "rsyslogd 正在运行...\n"
	host.Commands["auditctl -l"] = strings.Replace(auditRules, "-w /etc/sysctl.conf -p w", "-w /etc/sysctl.conf -p r", 1)

	env, _ := testEnv(host)
	frag := Audit{Locale: DefaultLocale()}.Evaluate(context.Background(), env)
	list := strings.Split(frag["B19"], "\n")
	require.Len(t, list, 8)
	assert.True(t, strings.HasPrefix(list[0], "[✓]"), "zh running indicator")
	assert.True(t, strings.HasPrefix(list[1], "[✗]"), "not running")
	assert.True(t, strings.HasPrefix(list[2], "[✗]"), "no SyslogFacility")
	assert.True(t, strings.HasPrefix(list[3], "[✗]"), "first rotate directive wins")
	assert.True(t, strings.HasPrefix(list[5], "[✗]"), "sysctl.conf is only read-watched")
	assert.True(t, strings.HasPrefix(list[7], "[✗]"), "default port")
}

func TestWatchedFiles_SkipsMalformedRules(t *testing.T) {
	watched := watchedFiles("-w\n-w /etc/passwd\n-w /etc/shadow -p wa\n-w /etc/motd -p wa\n")
	assert.Equal(t, map[string]bool{"/etc/shadow": true}, watched)
	assert.False(t, allWatched(watched))
}

func TestIPTables_WhitelistCIDRs(t *testing.T) {
	env, _ := testEnv(hardenedHost())
	frag := IPTables{}.Evaluate(context.Background(), env)
	assert.Equal(t, "Terminal access method and network address range", frag["A21"])
	assert.Equal(t, "10.10.0.0/16;192.168.1.0/24", frag["C21"])
}

func TestCommandHistory(t *testing.T) {
	hf := parseHistory(profile)
	assert.Equal(t, historyFacts{Size: 0, FileSize: 5}, hf)

	env, _ := testEnv(hardenedHost())
	frag := CommandHistory{}.Evaluate(context.Background(), env)
	assert.Equal(t, "[✓]Shell command history is removed", frag["B25"])
}

func TestCommandHistory_Defaults(t *testing.T) {
	assert.Equal(t, historyFacts{Size: defaultHistory, FileSize: defaultHistory}, parseHistory(""))
	assert.Equal(t, historyFacts{Size: 3, FileSize: defaultHistory}, parseHistory("HISTSIZE=3\n"))

	env, _ := testEnv(&facts.Fake{})
	frag := CommandHistory{}.Evaluate(context.Background(), env)
	assert.Equal(t, "[✗]Shell command history is removed", frag["B25"])
}

func TestLocale_IsRunning(t *testing.T) {
	l := DefaultLocale()
	assert.True(t, l.isRunning("sshd (pid 1) is running..."))
	assert.False(t, l.isRunning("sshd is not running"))
	assert.False(t, l.isRunning("sshd is stopped"))
	assert.True(t, l.isRunning("sshd (pid 1) 正在运行..."))
	assert.False(t, Locale{}.isRunning("running"))
}
