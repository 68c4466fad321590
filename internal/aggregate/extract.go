package aggregate

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/unidoc/unioffice/document"
)

// extractDocx converts word-processor bytes to plain text by joining
// paragraph texts with newlines.
func extractDocx(data []byte) (string, error) {
	doc, err := document.Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to parse document: %w", err)
	}
	defer doc.Close()

	var paragraphs []string
	for _, para := range doc.Paragraphs() {
		var sb strings.Builder
		for _, run := range para.Runs() {
			sb.WriteString(run.Text())
		}
		paragraphs = append(paragraphs, sb.String())
	}

	return strings.Join(paragraphs, "\n"), nil
}

// decodeText decodes raw bytes as UTF-8, replacing undecodable sequences
// instead of failing.
func decodeText(data []byte) string {
	return strings.ToValidUTF8(string(data), "�")
}
