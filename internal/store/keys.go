package store

import (
	"fmt"
	"sync"
	"time"
)

// Key layout:
//
//	{prefix}{id}                       entity
//	{prefix}idx:{index}:{value}        secondary index -> id
const indexMarker = "idx:"

var keyPool = sync.Pool{
	New: func() any {
		return make([]byte, 0, 256)
	},
}

// buildKey returns prefix+suffix in a pooled buffer. Call releaseKey when done.
func buildKey(prefix, suffix string) []byte {
	buf, _ := keyPool.Get().([]byte)
	buf = append(buf[:0], prefix...)
	return append(buf, suffix...)
}

// buildIndexKey returns prefix+"idx:"+index+":"+value in a pooled buffer.
func buildIndexKey(prefix, index, value string) []byte {
	buf, _ := keyPool.Get().([]byte)
	buf = append(buf[:0], prefix...)
	buf = append(buf, indexMarker...)
	buf = append(buf, index...)
	buf = append(buf, ':')
	return append(buf, value...)
}

// indexPrefix is the common prefix of every key of one index.
func indexPrefix(prefix, index string) []byte {
	return []byte(prefix + indexMarker + index + ":")
}

// releaseKey returns a buffer to the pool. The slice must not be used afterwards.
func releaseKey(key []byte) {
	if cap(key) <= 512 {
		keyPool.Put(key[:0]) //nolint:staticcheck // slices are the pooled value
	}
}

// sortableTime renders t so that lexicographic order equals chronological order.
func sortableTime(t time.Time) string {
	t = t.UTC()
	return t.Format("2006-01-02T15:04:05") + fmt.Sprintf(".%09dZ", t.Nanosecond())
}
