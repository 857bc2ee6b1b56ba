package transport

import (
	"bytes"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/BaSui01/mediaflow/types"
)

// FilePart is one file entry of a multipart form.
type FilePart struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

// EncodeMultipart builds a multipart/form-data body from plain fields
// and file parts, returning the body and its content type with the
// generated boundary.
func EncodeMultipart(fields map[string]string, files []FilePart) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", types.NewError(types.ErrInternal, "write multipart field").WithCause(err)
		}
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition",
			`form-data; name="`+escapeQuotes(f.Field)+`"; filename="`+escapeQuotes(f.Filename)+`"`)
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", types.NewError(types.ErrInternal, "create multipart part").WithCause(err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", types.NewError(types.ErrInternal, "write multipart part").WithCause(err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", types.NewError(types.ErrInternal, "finish multipart body").WithCause(err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
