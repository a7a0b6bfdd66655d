package cache

import (
	"fmt"
	"strconv"
	"strings"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

// entryNamespace prefixes hot-tier keys of cached documents.
const entryNamespace = "entry"

type defaultKeySerializer struct{}

// NewDefaultKeySerializer returns the serializer used for hot-tier keys.
func NewDefaultKeySerializer() KeySerializer {
	return defaultKeySerializer{}
}

// SerializeKey joins namespace and args with KeySeparator.
func (s defaultKeySerializer) SerializeKey(namespace string, args ...any) string {
	if len(args) == 0 {
		return namespace
	}
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, namespace)
	for _, arg := range args {
		parts = append(parts, s.serializeValue(arg))
	}
	return strings.Join(parts, KeySeparator)
}

// serializeValue covers the id and version segments of document keys. Other values
// use their default format.
func (s defaultKeySerializer) serializeValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "nil"
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}

// EntryKey is the hot-tier key of one (entity, version) document.
func EntryKey(s KeySerializer, entityID int64, version int) string {
	return s.SerializeKey(entryNamespace, entityID, version)
}

// EntityPrefix matches the hot-tier keys of every version of one entity.
func EntityPrefix(s KeySerializer, entityID int64) string {
	return s.SerializeKey(entryNamespace, entityID) + KeySeparator
}
