package facts

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Fake is an in-memory Collector. Any command, file or builtin without an
// entry fails with ErrUnavailable, so tests exercise the fallback paths by
// simply leaving sources out.
type Fake struct {
	Commands map[string]string
	Files    map[string]string
	Builtins map[string]string
	Ifaces   []Interface
	IfaceErr error
	// Busy ports fail to bind.
	Busy map[int]bool

	mu    sync.Mutex
	calls []string
}

func (f *Fake) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

// Calls returns every source requested so far, in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *Fake) RunCommand(ctx context.Context, line string, timeout time.Duration) (string, error) {
	f.record("cmd:" + line)
	if out, ok := f.Commands[line]; ok {
		return out, nil
	}
	return "", failure(KindCommand, line, errors.New("no such command"))
}

func (f *Fake) ReadFile(ctx context.Context, path string) (string, error) {
	f.record("file:" + path)
	if out, ok := f.Files[path]; ok {
		return out, nil
	}
	return "", failure(KindFile, path, errors.New("no such file"))
}

func (f *Fake) ShellBuiltin(ctx context.Context, name string) (string, error) {
	f.record("builtin:" + name)
	if out, ok := f.Builtins[name]; ok {
		return out, nil
	}
	return "", failure(KindBuiltin, name, errors.New("no such builtin"))
}

func (f *Fake) Interfaces(ctx context.Context) ([]Interface, error) {
	f.record("interfaces")
	if f.IfaceErr != nil {
		return nil, failure(KindInterfaces, "interfaces", f.IfaceErr)
	}
	return f.Ifaces, nil
}

func (f *Fake) PortFree(ctx context.Context, port int) bool {
	f.record("port")
	return !f.Busy[port]
}
