package hle

import (
	"fmt"
	"io"
	"sync"
)

// Console provides the host functions every program gets: console output
// and exit.
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	code   int32
	exited bool
}

// NewConsole creates a console writing guest output to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// Register adds the console functions to r.
func (c *Console) Register(r *Registry) {
	r.Register("OSReport", c.report)
	r.Register("OSConsoleWrite", c.consoleWrite)
	r.Register("exit", c.exit)
}

// ExitCode returns the status passed to exit, if it was called.
func (c *Console) ExitCode() (int32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code, c.exited
}

func (c *Console) write(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.Write(b)
}

// report(const char *msg) writes msg verbatim. Format directives are not
// expanded.
func (c *Console) report(a *Args) error {
	_, err := c.write([]byte(a.String()))
	return err
}

// consoleWrite(const char *buf, uint32 size)
func (c *Console) consoleWrite(a *Args) error {
	addr := a.Word()
	size := a.Word()

	buf := make([]byte, size)
	a.Space().ReadBytes(addr, buf)

	n, err := c.write(buf)
	if err != nil {
		return fmt.Errorf("console write: %w", err)
	}
	ReturnWord(a.Core(), uint32(n))
	return nil
}

// exit(int status) stops the calling core.
func (c *Console) exit(a *Args) error {
	code := a.Int()

	c.mu.Lock()
	c.code = code
	c.exited = true
	c.mu.Unlock()

	a.Core().NIA = 0
	return nil
}
