package shell

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/bucketboss/bucketboss/internal/provider"
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	dirStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func formatDirEntry(name string) string {
	return dirStyle.Render(name + "/")
}

func formatFileEntry(f provider.Object, detailed bool) string {
	if !detailed {
		return f.Name
	}
	date := ""
	if !f.LastModified.IsZero() {
		date = f.LastModified.Format("2006-01-02 15:04")
	}
	return fmt.Sprintf("%10s  %16s  %s", humanSize(f.Size), date, f.Name)
}

// humanSize renders a byte count with a binary unit suffix.
func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
