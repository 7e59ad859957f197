package storage

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/yllada/vpn-settings/common"
	"golang.org/x/text/encoding/unicode"
)

// credentialsVersion is the only blob layout understood by readers.
const credentialsVersion uint32 = 1

// nullString marks a null string in the stream.
const nullString uint32 = 0xFFFFFFFF

var utf16be = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// EncodeCredentials serializes a credential map into its base64 blob form.
// The layout is big-endian: version, item count, then one length-prefixed
// UTF-16 key and value per item, in key order.
func EncodeCredentials(credentials map[string]string) ([]byte, error) {
	keys := make([]string, 0, len(credentials))
	for k := range credentials {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf := binary.BigEndian.AppendUint32(nil, credentialsVersion)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(keys)))

	var err error
	for _, k := range keys {
		if buf, err = appendString(buf, k); err != nil {
			return nil, err
		}
		if buf, err = appendString(buf, credentials[k]); err != nil {
			return nil, err
		}
	}

	out := make([]byte, base64.StdEncoding.EncodedLen(len(buf)))
	base64.StdEncoding.Encode(out, buf)
	return out, nil
}

func appendString(buf []byte, s string) ([]byte, error) {
	encoded, err := utf16be.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("encoding %q: %w", s, err)
	}
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(encoded)))
	return append(buf, encoded...), nil
}

// DecodeCredentials parses a blob produced by EncodeCredentials. Padded and
// unpadded base64 are both accepted.
func DecodeCredentials(encoded []byte) (map[string]string, error) {
	data, err := base64.StdEncoding.DecodeString(string(encoded))
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(string(encoded))
	}
	if err != nil {
		return nil, common.WrapError(err, "credentials are not valid base64")
	}

	d := decoder{data: data}

	version, ok := d.readUint32()
	if !ok {
		return nil, common.ErrTruncated
	}
	if version != credentialsVersion {
		return nil, fmt.Errorf("%w: %d", common.ErrInvalidVersion, version)
	}

	count, ok := d.readUint32()
	if !ok {
		return nil, common.ErrTruncated
	}

	rv := make(map[string]string)
	for i := uint32(0); i < count; i++ {
		key, err := d.readString()
		if err != nil {
			return nil, err
		}
		value, err := d.readString()
		if err != nil {
			return nil, err
		}
		rv[key] = value
	}
	return rv, nil
}

type decoder struct {
	data []byte
	off  int
}

func (d *decoder) readUint32() (uint32, bool) {
	if len(d.data)-d.off < 4 {
		return 0, false
	}
	v := binary.BigEndian.Uint32(d.data[d.off:])
	d.off += 4
	return v, true
}

func (d *decoder) readString() (string, error) {
	n, ok := d.readUint32()
	if !ok {
		return "", common.ErrTruncated
	}
	if n == nullString {
		return "", nil
	}
	if n%2 != 0 || uint64(len(d.data)-d.off) < uint64(n) {
		return "", common.ErrTruncated
	}
	raw := d.data[d.off : d.off+int(n)]
	d.off += int(n)

	s, err := utf16be.NewDecoder().Bytes(raw)
	if err != nil {
		return "", common.WrapError(err, "invalid UTF-16 string")
	}
	return string(s), nil
}
