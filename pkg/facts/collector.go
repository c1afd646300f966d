package facts

import (
	"context"
	"errors"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	gonet "github.com/shirou/gopsutil/v4/net"
)

// System call wrappers for testing
var (
	netInterfaces = gonet.InterfacesWithContext
	readFile      = os.ReadFile
)

// Interface is one network interface and the addresses bound to it. Addresses
// are kept as reported by the OS, usually in CIDR notation ("10.0.0.5/24").
type Interface struct {
	Name  string
	Addrs []string
}

// Collector pulls raw, uninterpreted host state. Implementations must release
// every process, descriptor and socket before returning.
type Collector interface {
	// RunCommand executes line through the shell and returns its standard output.
	// The exit status is not interpreted. A timeout of zero uses the collector default.
	RunCommand(ctx context.Context, line string, timeout time.Duration) (string, error)
	// ReadFile returns the full contents of path.
	ReadFile(ctx context.Context, path string) (string, error)
	// ShellBuiltin evaluates a shell builtin such as umask in a login-like shell.
	ShellBuiltin(ctx context.Context, name string) (string, error)
	// Interfaces lists the host network interfaces.
	Interfaces(ctx context.Context) ([]Interface, error)
	// PortFree reports whether a TCP listener can be bound on loopback at port.
	// The listener is closed before returning.
	PortFree(ctx context.Context, port int) bool
}

// LocalCollector reads facts from the machine it runs on.
type LocalCollector struct {
	// Root is prepended to every file path read, "" reads the live filesystem.
	Root string
	// Timeout bounds every command, zero means no bound.
	Timeout time.Duration
	// Shell runs command lines, BuiltinShell runs builtins interactively.
	Shell        string
	BuiltinShell string
}

// NewLocalCollector creates a collector over the live host.
func NewLocalCollector(root string, timeout time.Duration) *LocalCollector {
	return &LocalCollector{
		Root:         root,
		Timeout:      timeout,
		Shell:        "sh",
		BuiltinShell: "bash",
	}
}

func (c *LocalCollector) RunCommand(ctx context.Context, line string, timeout time.Duration) (string, error) {
	return c.run(ctx, KindCommand, line, timeout, c.Shell, "-c", line)
}

// ShellBuiltin runs name inside an interactive shell, since builtins like umask
// have no binary to exec and only report the login defaults interactively.
func (c *LocalCollector) ShellBuiltin(ctx context.Context, name string) (string, error) {
	return c.run(ctx, KindBuiltin, name, 0, c.BuiltinShell, "-i", "-c", name)
}

func (c *LocalCollector) run(ctx context.Context, kind SourceKind, source string, timeout time.Duration, name string, args ...string) (string, error) {
	if timeout <= 0 {
		timeout = c.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	// Children that inherit stdout must not keep Output() blocked after a kill.
	cmd.WaitDelay = time.Second
	out, err := cmd.Output()
	if err == nil {
		return string(out), nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return "", failure(kind, source, ErrTimeout)
		}
		return "", failure(kind, source, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// The process completed; a non-zero status is still a valid observation.
		return string(out), nil
	}
	return "", failure(kind, source, err)
}

func (c *LocalCollector) ReadFile(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", failure(KindFile, path, err)
	}
	full := path
	if c.Root != "" {
		full = filepath.Join(c.Root, path)
	}
	data, err := readFile(full)
	if err != nil {
		return "", failure(KindFile, path, err)
	}
	return string(data), nil
}

func (c *LocalCollector) Interfaces(ctx context.Context) ([]Interface, error) {
	stats, err := netInterfaces(ctx)
	if err != nil {
		return nil, failure(KindInterfaces, "interfaces", err)
	}
	ifaces := make([]Interface, 0, len(stats))
	for _, s := range stats {
		iface := Interface{Name: s.Name}
		for _, a := range s.Addrs {
			iface.Addrs = append(iface.Addrs, a.Addr)
		}
		ifaces = append(ifaces, iface)
	}
	return ifaces, nil
}

func (c *LocalCollector) PortFree(ctx context.Context, port int) bool {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}
