// Package multiplexpb contains the messages the multiplexer
// persists in its pointer index. The message layout is
// described in pointer.proto; the Go types carry protobuf
// struct tags and are encoded by gogo/protobuf reflection.
package multiplexpb

import (
	"bytes"

	proto "github.com/gogo/protobuf/proto"
)

// Pointer locates one copy of a logical value
type Pointer struct {
	Store string `protobuf:"bytes,1,opt,name=store,proto3" json:"store,omitempty"`
	Key   []byte `protobuf:"bytes,2,opt,name=key,proto3" json:"key,omitempty"`
}

// Reset implements proto.Message
func (m *Pointer) Reset() { *m = Pointer{} }

// String implements proto.Message
func (m *Pointer) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message
func (*Pointer) ProtoMessage() {}

// Equal returns true if both pointers locate the same copy
func (m *Pointer) Equal(other *Pointer) bool {
	return m.Store == other.Store && bytes.Equal(m.Key, other.Key)
}

// PointerRecord is the ordered list of pointers stored in
// the pointer index under a logical key
type PointerRecord struct {
	Pointers []*Pointer `protobuf:"bytes,1,rep,name=pointers,proto3" json:"pointers,omitempty"`
}

// Reset implements proto.Message
func (m *PointerRecord) Reset() { *m = PointerRecord{} }

// String implements proto.Message
func (m *PointerRecord) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message
func (*PointerRecord) ProtoMessage() {}

// Contains returns true if the record holds a pointer
// to key in store
func (m *PointerRecord) Contains(store string, key []byte) bool {
	for _, pointer := range m.Pointers {
		if pointer.Store == store && bytes.Equal(pointer.Key, key) {
			return true
		}
	}

	return false
}

// Encode serializes the record. The encoding is
// deterministic.
func (m *PointerRecord) Encode() ([]byte, error) {
	return proto.Marshal(m)
}

// DecodePointerRecord is the inverse of Encode
func DecodePointerRecord(data []byte) (*PointerRecord, error) {
	var record PointerRecord

	if err := proto.Unmarshal(data, &record); err != nil {
		return nil, err
	}

	return &record, nil
}
