package display

import (
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Console is a DisplaySink that prints the panel to a terminal. Rows are
// addressed the same way as on the OLED: y / lineHeight.
type Console struct {
	mu         sync.Mutex
	w          io.Writer
	lineHeight int
	rows       []string
	style      lipgloss.Style
}

func NewConsole(w io.Writer, rows, lineHeight int) *Console {
	if lineHeight <= 0 {
		lineHeight = DefaultLineHeight
	}
	r := lipgloss.NewRenderer(w)
	return &Console{
		w:          w,
		lineHeight: lineHeight,
		rows:       make([]string, rows),
		style: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1),
	}
}

func (c *Console) DrawString(x, y int, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	row := y / c.lineHeight
	if row < 0 || row >= len(c.rows) {
		return nil
	}
	line := []rune(c.rows[row])
	col := x / face.Advance
	for len(line) < col+len([]rune(text)) {
		line = append(line, ' ')
	}
	copy(line[col:], []rune(text))
	c.rows[row] = string(line)
	return c.flush()
}

func (c *Console) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.rows {
		c.rows[i] = ""
	}
	return c.flush()
}

func (c *Console) Close() error { return nil }

// Lines returns the current panel content, one string per row.
func (c *Console) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.rows...)
}

func (c *Console) flush() error {
	_, err := io.WriteString(c.w, c.style.Render(strings.Join(c.rows, "\n"))+"\n")
	return err
}

// Discard drops every write.
type Discard struct{}

func (Discard) DrawString(int, int, string) error { return nil }
func (Discard) Clear() error                      { return nil }
func (Discard) Close() error                      { return nil }
