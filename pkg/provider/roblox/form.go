package roblox

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
)

// form assembles a multipart request body. It is rebuilt on every retry
// attempt, so it stores the parts rather than a consumed reader.
type form struct {
	fields [][2]string

	fileField string
	fileData  []byte
}

func (f *form) text(name, value string) *form {
	f.fields = append(f.fields, [2]string{name, value})
	return f
}

// file attaches PNG icon bytes under the given field name. The Roblox
// endpoints disagree on the field name (imageFile, file, files, Files), so it
// is the caller's choice.
func (f *form) file(field string, data []byte) *form {
	f.fileField = field
	f.fileData = data
	return f
}

func (f *form) request(ctx context.Context, method, url string) (*http.Request, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, field := range f.fields {
		if err := w.WriteField(field[0], field[1]); err != nil {
			return nil, fmt.Errorf("failed to build form: %w", err)
		}
	}
	if f.fileData != nil {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename="icon.png"`, f.fileField))
		header.Set("Content-Type", "image/png")
		part, err := w.CreatePart(header)
		if err != nil {
			return nil, fmt.Errorf("failed to build form: %w", err)
		}
		if _, err := part.Write(f.fileData); err != nil {
			return nil, fmt.Errorf("failed to build form: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req, nil
}
