package oxd

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"unicode/utf8"
)

// MarshalDocument serializes doc to its canonical XML form.
func MarshalDocument[A AssetID](doc *Document[A]) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// UnmarshalDocument parses a UTF-8 XML document body. Failures wrap ErrFormat.
func UnmarshalDocument[A AssetID](data []byte) (*Document[A], error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: document is not valid UTF-8", ErrFormat)
	}
	var doc Document[A]
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	if doc.Version == "" {
		return nil, fmt.Errorf("%w: %w", ErrFormat, errors.New("document version missing"))
	}
	return &doc, nil
}
