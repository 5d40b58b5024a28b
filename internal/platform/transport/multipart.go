package transport

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"sort"
)

// Multipart is a form-data request body. Array submissions repeat a key,
// conventionally suffixed with "[]".
type Multipart struct {
	Fields url.Values
	Files  []File
}

// File is one uploaded part.
type File struct {
	Field       string
	Name        string
	ContentType string
	Content     io.Reader
}

// AddField sets a scalar field.
func (m *Multipart) AddField(key, value string) {
	if m.Fields == nil {
		m.Fields = url.Values{}
	}
	m.Fields.Set(key, value)
}

// AddArray appends values under key[] (the backend's array convention).
func (m *Multipart) AddArray(key string, values ...string) {
	if m.Fields == nil {
		m.Fields = url.Values{}
	}
	for _, v := range values {
		m.Fields.Add(key+"[]", v)
	}
}

func (m *Multipart) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(m.Fields))
	for k := range m.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range m.Fields[k] {
			if err := w.WriteField(k, v); err != nil {
				return nil, "", fmt.Errorf("write field %s: %w", k, err)
			}
		}
	}

	for _, f := range m.Files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.Field, f.Name))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create part %s: %w", f.Field, err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, "", fmt.Errorf("copy file %s: %w", f.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
