package fitdecode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/tormoder/fit/dyncrc16"

	"github.com/lucasjlepore/fitlog"
)

const (
	compressedHeaderMask       = 0x80
	compressedLocalMesgNumMask = 0x60
	compressedTimeMask         = 0x1F
	mesgDefinitionMask         = 0x40
	devDataMask                = 0x20
	localMesgNumMask           = 0x0F

	headerSizeNoCRC = 12
	headerSizeCRC   = 14

	timestampFieldNum = 253
)

var (
	// ErrHeader reports a missing or inconsistent FIT file header.
	ErrHeader = errors.New("fitdecode: invalid header")
	// ErrChecksum reports a header or file CRC mismatch.
	ErrChecksum = errors.New("fitdecode: checksum mismatch")
	// ErrTruncated reports a record that runs past the end of the data section.
	ErrTruncated = errors.New("fitdecode: truncated data")
)

type baseType uint8

const (
	baseEnum    baseType = 0x00
	baseSint8   baseType = 0x01
	baseUint8   baseType = 0x02
	baseSint16  baseType = 0x83
	baseUint16  baseType = 0x84
	baseSint32  baseType = 0x85
	baseUint32  baseType = 0x86
	baseString  baseType = 0x07
	baseFloat32 baseType = 0x88
	baseFloat64 baseType = 0x89
	baseUint8z  baseType = 0x0A
	baseUint16z baseType = 0x8B
	baseUint32z baseType = 0x8C
	baseByte    baseType = 0x0D
	baseSint64  baseType = 0x8E
	baseUint64  baseType = 0x8F
	baseUint64z baseType = 0x90
)

var baseSizes = map[baseType]int{
	baseEnum:    1,
	baseSint8:   1,
	baseUint8:   1,
	baseSint16:  2,
	baseUint16:  2,
	baseSint32:  4,
	baseUint32:  4,
	baseString:  1,
	baseFloat32: 4,
	baseFloat64: 8,
	baseUint8z:  1,
	baseUint16z: 2,
	baseUint32z: 4,
	baseByte:    1,
	baseSint64:  8,
	baseUint64:  8,
	baseUint64z: 8,
}

// Header holds the fixed FIT file header.
type Header struct {
	Size            uint8  `json:"size"`
	ProtocolVersion uint8  `json:"protocol_version"`
	ProfileVersion  uint16 `json:"profile_version"`
	DataSize        uint32 `json:"data_size"`
}

type fieldDef struct {
	num  uint8
	size uint8
	base baseType
}

type localDef struct {
	global    uint16
	arch      binary.ByteOrder
	fields    []fieldDef
	devFields []uint8
}

type reader struct {
	data          []byte
	pos           int
	defs          map[uint8]localDef
	lastTimestamp uint32
	lastOffset    uint8
	definitions   int
	messages      []fitlog.Message
}

func parseHeader(data []byte) (Header, error) {
	if len(data) < headerSizeNoCRC {
		return Header{}, fmt.Errorf("%w: file too short (%d bytes)", ErrHeader, len(data))
	}
	size := data[0]
	if size != headerSizeNoCRC && size != headerSizeCRC {
		return Header{}, fmt.Errorf("%w: size %d", ErrHeader, size)
	}
	if len(data) < int(size) {
		return Header{}, fmt.Errorf("%w: need %d header bytes", ErrHeader, size)
	}
	if string(data[8:12]) != ".FIT" {
		return Header{}, fmt.Errorf("%w: data type %q", ErrHeader, string(data[8:12]))
	}
	h := Header{
		Size:            size,
		ProtocolVersion: data[1],
		ProfileVersion:  binary.LittleEndian.Uint16(data[2:4]),
		DataSize:        binary.LittleEndian.Uint32(data[4:8]),
	}
	if size == headerSizeCRC {
		stored := binary.LittleEndian.Uint16(data[12:14])
		if stored != 0 {
			if computed := dyncrc16.Checksum(data[:12]); computed != stored {
				return Header{}, fmt.Errorf("%w: header crc 0x%04X != 0x%04X", ErrChecksum, computed, stored)
			}
		}
	}
	return h, nil
}

func (r *reader) read(n int) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d", ErrTruncated, n, r.pos)
	}
	out := r.data[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *reader) run() error {
	for r.pos < len(r.data) {
		hb := r.data[r.pos]
		r.pos++

		switch {
		case hb&compressedHeaderMask == compressedHeaderMask:
			local := (hb & compressedLocalMesgNumMask) >> 5
			def, ok := r.defs[local]
			if !ok {
				return fmt.Errorf("missing definition for compressed message local=%d", local)
			}
			if err := r.readData(def, true, hb&compressedTimeMask); err != nil {
				return err
			}
		case hb&mesgDefinitionMask == mesgDefinitionMask:
			if err := r.readDefinition(hb); err != nil {
				return err
			}
		default:
			local := hb & localMesgNumMask
			def, ok := r.defs[local]
			if !ok {
				return fmt.Errorf("missing definition for message local=%d", local)
			}
			if err := r.readData(def, false, 0); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *reader) readDefinition(hb uint8) error {
	fixed, err := r.read(5)
	if err != nil {
		return err
	}
	var arch binary.ByteOrder
	switch fixed[1] {
	case 0:
		arch = binary.LittleEndian
	case 1:
		arch = binary.BigEndian
	default:
		return fmt.Errorf("invalid architecture byte %d", fixed[1])
	}
	def := localDef{
		global: arch.Uint16(fixed[2:4]),
		arch:   arch,
		fields: make([]fieldDef, 0, fixed[4]),
	}
	for i := 0; i < int(fixed[4]); i++ {
		raw, err := r.read(3)
		if err != nil {
			return err
		}
		def.fields = append(def.fields, fieldDef{num: raw[0], size: raw[1], base: decompressBaseType(raw[2])})
	}
	if hb&devDataMask == devDataMask {
		n, err := r.read(1)
		if err != nil {
			return err
		}
		for i := 0; i < int(n[0]); i++ {
			raw, err := r.read(3)
			if err != nil {
				return err
			}
			def.devFields = append(def.devFields, raw[1])
		}
	}
	r.defs[hb&localMesgNumMask] = def
	r.definitions++
	return nil
}

func (r *reader) readData(def localDef, compressed bool, offset uint8) error {
	msg := fitlog.Message{
		Kind:   MessageName(def.global),
		Fields: make([]fitlog.Field, 0, len(def.fields)+1),
	}

	if compressed && r.lastTimestamp != 0 {
		r.lastTimestamp += uint32((offset - r.lastOffset) & compressedTimeMask)
		r.lastOffset = offset
		msg.Fields = append(msg.Fields, fitlog.Field{
			Name:  "timestamp",
			Value: fitlog.Time(fitlog.FitTimestamp(r.lastTimestamp)),
		})
	}

	for _, fd := range def.fields {
		raw, err := r.read(int(fd.size))
		if err != nil {
			return err
		}
		v, ok := decodeValue(raw, fd.base, def.arch)
		if !ok {
			continue
		}
		if fd.num == timestampFieldNum {
			if ts, ok := v.Int(); ok {
				r.lastTimestamp = uint32(ts)
				r.lastOffset = uint8(ts) & compressedTimeMask
			}
		}
		p := lookupField(def.global, fd.num)
		if v, ok = project(v, p); ok {
			msg.Fields = append(msg.Fields, fitlog.Field{Name: p.name, Value: v})
		}
	}
	for _, size := range def.devFields {
		if _, err := r.read(int(size)); err != nil {
			return err
		}
	}

	r.messages = append(r.messages, msg)
	return nil
}

// project applies the profile's unit conversion to a native value.
func project(v fitlog.Value, p fieldProfile) (fitlog.Value, bool) {
	switch p.kind {
	case fieldScaled:
		f, ok := v.Float()
		if !ok {
			return v, false
		}
		return fitlog.Float64(f/p.scale - p.offset), true
	case fieldTime:
		n, ok := v.Int()
		if !ok {
			return v, false
		}
		return fitlog.Time(fitlog.FitTimestamp(uint32(n))), true
	case fieldEnum:
		n, ok := v.Int()
		if !ok {
			return v, false
		}
		return fitlog.String(p.enum(n)), true
	default:
		return v, true
	}
}

// decodeValue decodes a single-element field. Arrays and invalid sentinels
// report false; strings are returned up to the first NUL.
func decodeValue(raw []byte, bt baseType, arch binary.ByteOrder) (fitlog.Value, bool) {
	if bt == baseString {
		s := nulTerminated(raw)
		return fitlog.String(s), s != ""
	}
	size, ok := baseSizes[bt]
	if !ok || len(raw) != size {
		return fitlog.Value{}, false
	}

	switch bt {
	case baseEnum, baseUint8, baseByte:
		return fitlog.Uint8(raw[0]), raw[0] != 0xFF
	case baseUint8z:
		return fitlog.Uint8(raw[0]), raw[0] != 0
	case baseSint8:
		v := int8(raw[0])
		return fitlog.Sint8(v), v != 0x7F
	case baseSint16:
		v := int16(arch.Uint16(raw))
		return fitlog.Sint16(v), v != 0x7FFF
	case baseUint16:
		v := arch.Uint16(raw)
		return fitlog.Uint16(v), v != 0xFFFF
	case baseUint16z:
		v := arch.Uint16(raw)
		return fitlog.Uint16(v), v != 0
	case baseSint32:
		v := int32(arch.Uint32(raw))
		return fitlog.Sint32(v), v != 0x7FFFFFFF
	case baseUint32:
		v := arch.Uint32(raw)
		return fitlog.Uint32(v), v != 0xFFFFFFFF
	case baseUint32z:
		v := arch.Uint32(raw)
		return fitlog.Uint32(v), v != 0
	case baseSint64:
		v := int64(arch.Uint64(raw))
		return fitlog.Sint64(v), v != math.MaxInt64
	case baseUint64:
		v := arch.Uint64(raw)
		return fitlog.Uint64(v), v != math.MaxUint64
	case baseUint64z:
		v := arch.Uint64(raw)
		return fitlog.Uint64(v), v != 0
	case baseFloat32:
		bits := arch.Uint32(raw)
		return fitlog.Float32(math.Float32frombits(bits)), bits != 0xFFFFFFFF
	case baseFloat64:
		bits := arch.Uint64(raw)
		return fitlog.Float64(math.Float64frombits(bits)), bits != math.MaxUint64
	}
	return fitlog.Value{}, false
}

func nulTerminated(raw []byte) string {
	for i, b := range raw {
		if b == 0 {
			return string(raw[:i])
		}
	}
	return string(raw)
}

func decompressBaseType(b byte) baseType {
	switch b & 0x1F {
	case 0x03:
		return baseSint16
	case 0x04:
		return baseUint16
	case 0x05:
		return baseSint32
	case 0x06:
		return baseUint32
	case 0x08:
		return baseFloat32
	case 0x09:
		return baseFloat64
	case 0x0B:
		return baseUint16z
	case 0x0C:
		return baseUint32z
	case 0x0E:
		return baseSint64
	case 0x0F:
		return baseUint64
	case 0x10:
		return baseUint64z
	default:
		return baseType(b & 0x1F)
	}
}
