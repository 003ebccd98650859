package onenote

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/custodia-labs/onenote-explorer/internal/core/domain"
)

const defaultPartContentType = "application/octet-stream"

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// EncodeMultipart writes items as a multipart/form-data body, one part per
// item in order, and returns the body with its Content-Type.
func EncodeMultipart(items []domain.MultiFormItem) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for i, item := range items {
		if item.Name == "" {
			return nil, "", fmt.Errorf("multipart item %d has no name", i)
		}

		disposition := fmt.Sprintf(`form-data; name="%s"`, quoteEscaper.Replace(item.Name))
		if item.Filename != "" {
			disposition += fmt.Sprintf(`; filename="%s"`, quoteEscaper.Replace(item.Filename))
		}

		contentType := item.ContentType
		if contentType == "" {
			contentType = defaultPartContentType
		}

		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", disposition)
		header.Set("Content-Type", contentType)

		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("create part %q: %w", item.Name, err)
		}
		if _, err := part.Write(item.Content); err != nil {
			return nil, "", fmt.Errorf("write part %q: %w", item.Name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}
