package pipeline

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucasjlepore/fitlog"
	"github.com/lucasjlepore/fitlog/fitdecode"
)

// DumpFormatVersion identifies the layout of a message dump.
const DumpFormatVersion = "fitlog_messages_v1"

// Dump artifact names.
const (
	ManifestFile = "manifest.json"
	MessagesFile = "messages.jsonl"
)

// Manifest describes a message dump.
type Manifest struct {
	FormatVersion string            `json:"format_version"`
	SourceName    string            `json:"source_name"`
	SourceSHA256  string            `json:"source_sha256"`
	SourceSize    int64             `json:"source_size_bytes"`
	Header        fitdecode.Header  `json:"header"`
	Device        *fitdecode.Device `json:"device,omitempty"`
	Definitions   int               `json:"definition_count"`
	Messages      int               `json:"message_count"`
	TrailingBytes int               `json:"trailing_bytes"`
	MessageCounts map[string]int    `json:"message_counts"`
}

// messageLine is one line of messages.jsonl.
type messageLine struct {
	Index int `json:"index"`
	fitlog.Message
}

// DumpBytes decodes data and renders every data message as JSON lines plus a
// manifest, keyed by file name.
func DumpBytes(dec *fitdecode.Decoder, name string, data []byte) (map[string][]byte, *Manifest, error) {
	if dec == nil {
		dec = fitdecode.New(nil)
	}
	f, err := dec.Inspect(data)
	if err != nil {
		return nil, nil, fmt.Errorf("decode fit: %w", err)
	}

	m := &Manifest{
		FormatVersion: DumpFormatVersion,
		SourceName:    name,
		SourceSHA256:  fitlog.FileHash(data),
		SourceSize:    int64(len(data)),
		Header:        f.Header,
		Definitions:   f.Definitions,
		Messages:      len(f.Messages),
		TrailingBytes: f.TrailingBytes,
		MessageCounts: make(map[string]int),
	}
	if dev, err := fitdecode.ReadDevice(data); err == nil {
		m.Device = dev
	}
	for _, msg := range f.Messages {
		m.MessageCounts[msg.Kind]++
	}

	var lines bytes.Buffer
	buf := bufio.NewWriter(&lines)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	for i, msg := range f.Messages {
		if err := enc.Encode(messageLine{Index: i, Message: msg}); err != nil {
			return nil, nil, fmt.Errorf("encode message %d: %w", i, err)
		}
	}
	if err := buf.Flush(); err != nil {
		return nil, nil, err
	}

	manifest, err := marshalJSON(m)
	if err != nil {
		return nil, nil, fmt.Errorf("encode %s: %w", ManifestFile, err)
	}
	return map[string][]byte{
		ManifestFile: manifest,
		MessagesFile: lines.Bytes(),
	}, m, nil
}

// Dump writes the message dump of the FIT file at path into dir. A non-empty
// dir is rejected unless overwrite is set.
func Dump(dec *fitdecode.Decoder, path, dir string, overwrite bool) (*Manifest, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fit file: %w", err)
	}
	files, m, err := DumpBytes(dec, filepath.Base(path), data)
	if err != nil {
		return nil, err
	}
	if err := ensureOutputDir(dir, overwrite); err != nil {
		return nil, err
	}
	for _, name := range []string{ManifestFile, MessagesFile} {
		if err := os.WriteFile(filepath.Join(dir, name), files[name], 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
	}
	return m, nil
}

func ensureOutputDir(path string, overwrite bool) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("read output directory: %w", err)
	}
	if len(entries) > 0 && !overwrite {
		return fmt.Errorf("output directory is not empty: %s (use -overwrite)", path)
	}
	return nil
}
