// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"time"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"

	"github.com/poiesic/docflow/core"
)

// Record is a persisted embedded chunk.
type Record struct {
	ID         string        `json:"id"`
	Collection string        `json:"collection"`
	Content    string        `json:"content"`
	Metadata   core.Metadata `json:"metadata,omitempty"`
	Vector     []float32     `json:"vector"`
	StoredAt   time.Time     `json:"stored_at"`
}

// NewRecord builds a record for item in collection.
func NewRecord(id, collection string, item core.EmbeddedChunk, storedAt time.Time) Record {
	return Record{
		ID:         id,
		Collection: collection,
		Content:    item.Document.Content,
		Metadata:   item.Document.Metadata,
		Vector:     item.Vector,
		StoredAt:   storedAt,
	}
}

const recordVersion byte = 1

// Metadata value tags. Values that are not scalars are stored as JSON.
const (
	valueNull byte = iota
	valueString
	valueInt
	valueFloat
	valueBool
	valueJSON
)

var (
	vectorMUS   = ord.NewSliceSer[float32](raw.Float32)
	storedAtMUS = raw.TimeUnixMicroUTC
)

type metaEntry struct {
	key  string
	tag  byte
	text string // valueString, valueJSON
	num  int64
	flt  float64
	flag bool
}

// MarshalRecord serializes a record. StoredAt keeps microsecond precision.
func MarshalRecord(record Record) ([]byte, error) {
	entries, err := metadataEntries(record.Metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}

	size := raw.Byte.Size(recordVersion) +
		ord.String.Size(record.ID) +
		ord.String.Size(record.Collection) +
		ord.String.Size(record.Content) +
		ord.Bool.Size(record.Metadata != nil) +
		varint.PositiveInt.Size(len(entries)) +
		vectorMUS.Size(record.Vector) +
		storedAtMUS.Size(record.StoredAt)
	for _, e := range entries {
		size += e.size()
	}

	buf := make([]byte, size)
	n := raw.Byte.Marshal(recordVersion, buf)
	n += ord.String.Marshal(record.ID, buf[n:])
	n += ord.String.Marshal(record.Collection, buf[n:])
	n += ord.String.Marshal(record.Content, buf[n:])
	n += ord.Bool.Marshal(record.Metadata != nil, buf[n:])
	n += varint.PositiveInt.Marshal(len(entries), buf[n:])
	for _, e := range entries {
		n += e.marshal(buf[n:])
	}
	n += vectorMUS.Marshal(record.Vector, buf[n:])
	n += storedAtMUS.Marshal(record.StoredAt, buf[n:])
	return buf[:n], nil
}

// UnmarshalRecord deserializes a record.
func UnmarshalRecord(data []byte) (Record, error) {
	r := &reader{bs: data}
	if version := read[byte](r, raw.Byte); r.err == nil && version != recordVersion {
		return Record{}, fmt.Errorf("%w: unknown record version %d", ErrSerializationFailed, version)
	}

	var record Record
	record.ID = read[string](r, ord.String)
	record.Collection = read[string](r, ord.String)
	record.Content = read[string](r, ord.String)
	hasMeta := read[bool](r, ord.Bool)
	count := read[int](r, varint.PositiveInt)
	if r.err == nil && (count < 0 || count > len(data)) {
		r.err = fmt.Errorf("invalid metadata length %d", count)
	}
	if r.err == nil && hasMeta {
		record.Metadata = make(core.Metadata, count)
	}
	for i := 0; i < count && r.err == nil; i++ {
		key, value := readEntry(r)
		if r.err == nil && record.Metadata != nil {
			record.Metadata[key] = value
		}
	}
	record.Vector = read[[]float32](r, vectorMUS)
	record.StoredAt = read[time.Time](r, storedAtMUS)
	if r.err == nil && r.n != len(data) {
		r.err = errTrailingBytes
	}
	if r.err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrSerializationFailed, r.err)
	}
	if len(record.Vector) == 0 {
		record.Vector = nil
	}
	return record, nil
}

// metadataEntries converts m into tagged entries sorted by key, so equal
// maps always encode to equal bytes.
func metadataEntries(m core.Metadata) ([]metaEntry, error) {
	entries := make([]metaEntry, 0, len(m))
	for _, key := range slices.Sorted(maps.Keys(m)) {
		e := metaEntry{key: key}
		switch v := m[key].(type) {
		case nil:
			e.tag = valueNull
		case string:
			e.tag, e.text = valueString, v
		case bool:
			e.tag, e.flag = valueBool, v
		case int:
			e.tag, e.num = valueInt, int64(v)
		case int8:
			e.tag, e.num = valueInt, int64(v)
		case int16:
			e.tag, e.num = valueInt, int64(v)
		case int32:
			e.tag, e.num = valueInt, int64(v)
		case int64:
			e.tag, e.num = valueInt, v
		case uint8:
			e.tag, e.num = valueInt, int64(v)
		case uint16:
			e.tag, e.num = valueInt, int64(v)
		case uint32:
			e.tag, e.num = valueInt, int64(v)
		case float32:
			e.tag, e.flt = valueFloat, float64(v)
		case float64:
			e.tag, e.flt = valueFloat, v
		default:
			if u, ok := unsignedValue(v); ok && u <= math.MaxInt64 {
				e.tag, e.num = valueInt, int64(u)
				break
			}
			data, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("metadata %q: %w", key, err)
			}
			e.tag, e.text = valueJSON, string(data)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func unsignedValue(v any) (uint64, bool) {
	switch u := v.(type) {
	case uint:
		return uint64(u), true
	case uint64:
		return u, true
	}
	return 0, false
}

func (e metaEntry) size() int {
	size := ord.String.Size(e.key) + raw.Byte.Size(e.tag)
	switch e.tag {
	case valueString, valueJSON:
		size += ord.String.Size(e.text)
	case valueInt:
		size += varint.Int64.Size(e.num)
	case valueFloat:
		size += raw.Float64.Size(e.flt)
	case valueBool:
		size += ord.Bool.Size(e.flag)
	}
	return size
}

func (e metaEntry) marshal(bs []byte) int {
	n := ord.String.Marshal(e.key, bs)
	n += raw.Byte.Marshal(e.tag, bs[n:])
	switch e.tag {
	case valueString, valueJSON:
		n += ord.String.Marshal(e.text, bs[n:])
	case valueInt:
		n += varint.Int64.Marshal(e.num, bs[n:])
	case valueFloat:
		n += raw.Float64.Marshal(e.flt, bs[n:])
	case valueBool:
		n += ord.Bool.Marshal(e.flag, bs[n:])
	}
	return n
}

func readEntry(r *reader) (string, any) {
	key := read[string](r, ord.String)
	tag := read[byte](r, raw.Byte)
	if r.err != nil {
		return "", nil
	}
	switch tag {
	case valueNull:
		return key, nil
	case valueString:
		return key, read[string](r, ord.String)
	case valueInt:
		return key, read[int64](r, varint.Int64)
	case valueFloat:
		return key, read[float64](r, raw.Float64)
	case valueBool:
		return key, read[bool](r, ord.Bool)
	case valueJSON:
		text := read[string](r, ord.String)
		if r.err != nil {
			return "", nil
		}
		v, err := core.DecodeJSONValue([]byte(text))
		if err != nil {
			r.err = fmt.Errorf("metadata %q: %w", key, err)
			return "", nil
		}
		return key, v
	}
	r.err = fmt.Errorf("metadata %q: unknown value tag %d", key, tag)
	return "", nil
}

// reader walks a buffer, stopping at the first error.
type reader struct {
	bs  []byte
	n   int
	err error
}

var errTrailingBytes = errors.New("trailing bytes after record")

func read[T any](r *reader, ser mus.Serializer[T]) (v T) {
	if r.err != nil {
		return v
	}
	v, n, err := ser.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}
