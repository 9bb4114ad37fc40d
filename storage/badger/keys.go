package badger

import (
	"encoding/binary"
	"strings"
	"time"
)

// Key prefixes for different data types
const (
	recordPrefix       = "rec:"
	recordCreatedIndex = "recc:"
	recordFieldIndex   = "recf:"
	runPrefix          = "run:"
	runIDSeq           = "runseq"
)

// makeRecordKey generates a key for a record by ID.
func makeRecordKey(id string) []byte {
	return []byte(recordPrefix + id)
}

// makeCreatedKey generates a composite key for the creation-time index.
// Format: prefix:timestamp:id
func makeCreatedKey(created time.Time, id string) []byte {
	prefixBytes := []byte(recordCreatedIndex)
	buf := make([]byte, len(prefixBytes)+8+len(id))
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(created.UnixMicro()))
	offset += 8
	copy(buf[offset:], id)
	return buf
}

// idFromCreatedKey extracts the record ID from a creation index key.
func idFromCreatedKey(key []byte) string {
	return string(key[len(recordCreatedIndex)+8:])
}

// makePartialFieldKey generates the prefix shared by every record holding value in field.
// Format: prefix:field:value\x00
func makePartialFieldKey(field, value string) []byte {
	return []byte(recordFieldIndex + field + ":" + strings.ToLower(value) + "\x00")
}

// makeFieldKey generates a composite key for a field value index.
// Format: prefix:field:value\x00id
func makeFieldKey(field, value, id string) []byte {
	return append(makePartialFieldKey(field, value), id...)
}

// makeRunKey generates a key for a run summary ordered by start time.
// Format: prefix:timestamp:seq
func makeRunKey(started time.Time, seq uint64) []byte {
	prefixBytes := []byte(runPrefix)
	buf := make([]byte, len(prefixBytes)+16)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint64(buf[offset:], uint64(started.UnixMicro()))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}
