package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/robert-malhotra/go-rio-stac/pkg/stac"
)

// encodeItem returns the compact JSON of item, without HTML escaping,
// followed by a newline.
func encodeItem(item *stac.Item) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(item); err != nil {
		return nil, fmt.Errorf("encode item: %w", err)
	}
	return buf.Bytes(), nil
}

// writeItem writes the item to path, or to stdout when path is empty. The
// bytes are the same in both cases.
func writeItem(item *stac.Item, path string, stdout io.Writer) error {
	data, err := encodeItem(item)
	if err != nil {
		return err
	}
	if path == "" {
		_, err = stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write item: %w", err)
	}
	return nil
}
