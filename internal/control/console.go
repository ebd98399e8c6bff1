package control

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"github.com/OCAP2/collision-benchmark/internal/channel"
)

// Console reads operator input line by line on its own goroutine and
// serializes output. The reader goroutine only touches the input stream.
type Console struct {
	lines channel.Channel[string]

	mu  sync.Mutex
	out io.Writer
}

// NewConsole starts reading in. The line channel is closed at EOF.
func NewConsole(in io.Reader, out io.Writer) *Console {
	c := &Console{
		lines: channel.New[string](16),
		out:   out,
	}
	go c.read(in)
	return c
}

func (c *Console) read(in io.Reader) {
	defer c.lines.Close()
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		c.lines.Send(sc.Text())
	}
}

// Lines returns the operator input.
func (c *Console) Lines() channel.Receiver[string] {
	return c.lines
}

func (c *Console) Printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *Console) Println(args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, args...)
}
