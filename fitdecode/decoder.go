// Package fitdecode reads the binary FIT container and yields the ordered
// stream of data messages consumed by fitlog.Parser.
package fitdecode

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"

	"github.com/tormoder/fit"
	"github.com/tormoder/fit/dyncrc16"

	"github.com/lucasjlepore/fitlog"
)

// File is the decoded content of one FIT file.
type File struct {
	Header        Header
	Messages      []fitlog.Message
	Definitions   int
	TrailingBytes int
}

// Decoder implements fitlog.MessageSource over raw FIT bytes.
type Decoder struct {
	Log *slog.Logger
}

// New returns a Decoder logging to log. A nil logger discards output.
func New(log *slog.Logger) *Decoder {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Decoder{Log: log}
}

// Decode returns the data messages of data in file order.
func (d *Decoder) Decode(data []byte) ([]fitlog.Message, error) {
	f, err := d.Inspect(data)
	if err != nil {
		return nil, err
	}
	return f.Messages, nil
}

// Inspect decodes data and reports container details alongside the messages.
// Chained FIT files are not followed; bytes past the first file are counted
// in TrailingBytes.
func (d *Decoder) Inspect(data []byte) (*File, error) {
	h, err := parseHeader(data)
	if err != nil {
		return nil, err
	}

	start := int(h.Size)
	end := start + int(h.DataSize)
	if len(data) < end+2 {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrTruncated, len(data), end+2)
	}
	stored := binary.LittleEndian.Uint16(data[end : end+2])
	if computed := dyncrc16.Checksum(data[:end]); computed != stored {
		return nil, fmt.Errorf("%w: file crc 0x%04X != 0x%04X", ErrChecksum, computed, stored)
	}

	r := &reader{
		data: data[start:end],
		defs: make(map[uint8]localDef),
	}
	if err := r.run(); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}

	f := &File{
		Header:        h,
		Messages:      r.messages,
		Definitions:   r.definitions,
		TrailingBytes: len(data) - (end + 2),
	}
	if f.TrailingBytes > 0 {
		d.logger().Warn("ignoring trailing bytes after FIT file", "bytes", f.TrailingBytes)
	}
	if d.logger().Enabled(context.Background(), slog.LevelDebug) {
		d.logger().Debug("decoded FIT container",
			"protocol", h.ProtocolVersion,
			"profile", h.ProfileVersion,
			"definitions", f.Definitions,
			"messages", len(f.Messages),
		)
	}
	return f, nil
}

func (d *Decoder) logger() *slog.Logger {
	if d == nil || d.Log == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return d.Log
}

// Device identifies the recording device from the file_id message.
type Device struct {
	FileType     string `json:"file_type"`
	Manufacturer string `json:"manufacturer"`
	Product      string `json:"product"`
	SerialNumber uint32 `json:"serial_number,omitempty"`
	TimeCreated  string `json:"time_created,omitempty"`
}

// ReadDevice decodes only the header and file_id message of data.
func ReadDevice(data []byte) (*Device, error) {
	_, id, err := fit.DecodeHeaderAndFileID(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode file_id: %w", err)
	}
	dev := &Device{
		FileType:     fmt.Sprint(id.Type),
		Manufacturer: fmt.Sprint(id.Manufacturer),
		Product:      fmt.Sprint(id.GetProduct()),
		SerialNumber: id.SerialNumber,
	}
	if !id.TimeCreated.IsZero() {
		dev.TimeCreated = id.TimeCreated.UTC().Format("2006-01-02T15:04:05Z")
	}
	return dev, nil
}
