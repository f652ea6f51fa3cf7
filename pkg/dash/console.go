package dash

import (
	"fmt"
	"io"
)

// ConsoleDisplay renders the dashboard as a carriage-returned status
// line, for host builds and debugging.
type ConsoleDisplay struct {
	Out io.Writer
}

// Render implements Display.
func (c *ConsoleDisplay) Render(st Status) error {
	_, err := fmt.Fprintf(c.Out, "\r%-60s", st.Line())
	return err
}
