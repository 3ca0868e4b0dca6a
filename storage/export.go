package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mychat/model"
)

const maxFilenameRunes = 50

// ExportFormat selects the file format written by ExportConversation.
type ExportFormat string

const (
	FormatJSON     ExportFormat = "json"
	FormatMarkdown ExportFormat = "md"
)

// SanitizeFilename turns a conversation title into a safe file name.
func SanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ', '\n', '\r', '\t':
			return '-'
		}
		return r
	}, name)

	name = strings.Trim(name, "-.")

	if r := []rune(name); len(r) > maxFilenameRunes {
		name = strings.TrimRight(string(r[:maxFilenameRunes]), "-.")
	}

	if name == "" {
		name = "conversation"
	}

	return name
}

// GenerateExportPath returns a timestamped export file path inside dir.
func GenerateExportPath(dir, title string, format ExportFormat, now time.Time) string {
	filename := fmt.Sprintf("mychat-%s-%s.%s", SanitizeFilename(title), now.Format("20060102-150405"), format)
	return filepath.Join(dir, filename)
}

// FormatFromPath picks the export format from the file extension. Anything
// other than .md or .markdown is written as JSON.
func FormatFromPath(path string) ExportFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return FormatMarkdown
	default:
		return FormatJSON
	}
}

// ExportConversation writes conv to path with 0600 permissions.
func ExportConversation(conv model.Conversation, path string, format ExportFormat) error {
	var data []byte
	switch format {
	case FormatMarkdown:
		data = []byte(RenderMarkdown(conv))
	default:
		var err error
		data, err = json.MarshalIndent(conv, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal conversation: %w", err)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// RenderMarkdown formats conv as a Markdown transcript.
func RenderMarkdown(conv model.Conversation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", conv.Title)
	fmt.Fprintf(&b, "_%s_\n", conv.CreatedAt.Format(time.RFC3339))

	for _, m := range conv.Messages {
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", m.Role, m.Content)
	}
	return b.String()
}
