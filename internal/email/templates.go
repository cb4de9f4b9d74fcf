package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

var messageTemplate = template.Must(template.New("message.html").ParseFS(templateFS, "templates/message.html"))

type messageEmailData struct {
	Subject    string
	Paragraphs []string
	SenderName string
}

// renderMessageHTML wraps a plain text body in the HTML layout, one <p> per blank-line separated block.
func renderMessageHTML(subject, body, senderName string) (string, error) {
	data := messageEmailData{Subject: subject, SenderName: senderName}
	for _, block := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n\n") {
		if block = strings.TrimSpace(block); block != "" {
			data.Paragraphs = append(data.Paragraphs, block)
		}
	}

	var buf bytes.Buffer
	if err := messageTemplate.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template: %w", err)
	}
	return buf.String(), nil
}
