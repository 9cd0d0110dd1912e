// Package extract turns uploaded narrative files into plain text for generation.
package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"resume-intake/internal/shared/errs"
)

const (
	mimePDF      = "application/pdf"
	mimeDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeText     = "text/plain"
	mimeMarkdown = "text/markdown"
	mimeZip      = "application/zip"
	mimeOctet    = "application/octet-stream"

	docxBody = "word/document.xml"
)

type extractor func(data []byte) (string, error)

var extractors = map[string]extractor{
	mimePDF:      extractPDF,
	mimeDOCX:     extractDOCX,
	mimeText:     decodeText,
	mimeMarkdown: decodeText,
}

var extToMime = map[string]string{
	".pdf":      mimePDF,
	".docx":     mimeDOCX,
	".txt":      mimeText,
	".md":       mimeMarkdown,
	".markdown": mimeMarkdown,
}

var (
	trailingSpace = regexp.MustCompile(`[ \t]+\n`)
	blankRuns     = regexp.MustCompile(`\n{3,}`)
)

// Text extracts plain text from an uploaded narrative. PDF, DOCX, plain text and Markdown are
// supported; the type comes from mimeType, falling back to the file extension. Failures are
// validation errors because they describe the upload, not the service.
func Text(ctx context.Context, data []byte, mimeType string, fileName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errs.Invalid("file", "is empty")
	}
	kind := detectMime(mimeType, fileName, data)
	fn, ok := extractors[kind]
	if !ok {
		return "", errs.Invalid("file", "unsupported mime type: "+kind)
	}
	text, err := fn(data)
	if err != nil {
		var validErr *errs.ValidationError
		if errors.As(err, &validErr) {
			return "", err
		}
		return "", errs.Invalid("file", fmt.Sprintf("could not read %s: %v", kind, err))
	}
	return normalize(text), nil
}

// normalize unifies line endings and squeezes the blank runs PDF extraction tends to leave.
func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = trailingSpace.ReplaceAllString(text, "\n")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func decodeText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return "", errs.Invalid("file", "text is not valid UTF-8")
	}
	return string(data), nil
}

func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf strings.Builder
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func extractDOCX(data []byte) (string, error) {
	body, err := zipEntry(data, docxBody)
	if err != nil {
		return "", err
	}
	if body == nil {
		return "", errors.New("word/document.xml not found")
	}
	rc, err := body.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return stripDocxXML(string(raw)), nil
}

// zipEntry returns the named archive member, tolerating Windows path separators.
func zipEntry(data []byte, name string) (*zip.File, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == name {
			return f, nil
		}
	}
	return nil, nil
}

// stripDocxXML keeps character data and turns paragraph, break and tab elements into
// whitespace. Malformed XML is returned unchanged.
func stripDocxXML(raw string) string {
	decoder := xml.NewDecoder(strings.NewReader(raw))
	var buf strings.Builder
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return raw
		}
		switch t := tok.(type) {
		case xml.CharData:
			buf.Write(t)
		case xml.StartElement:
			if t.Name.Local == "tab" {
				buf.WriteByte('\t')
			}
		case xml.EndElement:
			if (t.Name.Local == "p" || t.Name.Local == "br") && buf.Len() > 0 {
				buf.WriteByte('\n')
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

// detectMime trusts an explicit content type except for the generic ones browsers send for
// unknown files. A zip is only treated as DOCX when it carries a Word body.
func detectMime(mimeType string, fileName string, data []byte) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	switch clean {
	case "", mimeOctet:
		if byExt, ok := extToMime[strings.ToLower(filepath.Ext(fileName))]; ok {
			return byExt
		}
		if clean == "" {
			return mimeOctet
		}
		return clean
	case mimeZip:
		if f, err := zipEntry(data, docxBody); err == nil && f != nil {
			return mimeDOCX
		}
		return clean
	default:
		return clean
	}
}
