package wire

import (
	"bytes"
	"testing"
)

func TestCodecPrimitivesRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewCodec(nil, &buf)

	if err := w.WriteBool(true); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteInt16(-1234); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteUint16(54321); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteInt32(-123456789); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteUint32(3000000000); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteFloat32(3.5); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteFloat64(-2.25); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteUTF("hello, registry"); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteUTF(""); err != nil {
		t.Fatal(err)
	}

	r := NewCodec(bytes.NewReader(buf.Bytes()), nil)

	if v, err := r.ReadBool(); err != nil || v != true {
		t.Fatalf("ReadBool: %v, %v", v, err)
	}
	if v, err := r.ReadInt16(); err != nil || v != -1234 {
		t.Fatalf("ReadInt16: %v, %v", v, err)
	}
	if v, err := r.ReadUint16(); err != nil || v != 54321 {
		t.Fatalf("ReadUint16: %v, %v", v, err)
	}
	if v, err := r.ReadInt32(); err != nil || v != -123456789 {
		t.Fatalf("ReadInt32: %v, %v", v, err)
	}
	if v, err := r.ReadUint32(); err != nil || v != 3000000000 {
		t.Fatalf("ReadUint32: %v, %v", v, err)
	}
	if v, err := r.ReadFloat32(); err != nil || v != 3.5 {
		t.Fatalf("ReadFloat32: %v, %v", v, err)
	}
	if v, err := r.ReadFloat64(); err != nil || v != -2.25 {
		t.Fatalf("ReadFloat64: %v, %v", v, err)
	}
	if v, err := r.ReadUTF(); err != nil || v != "hello, registry" {
		t.Fatalf("ReadUTF: %q, %v", v, err)
	}
	if v, err := r.ReadUTF(); err != nil || v != "" {
		t.Fatalf("ReadUTF empty: %q, %v", v, err)
	}
}

// fakeMessage is a minimal Encodable/Decodable used only to exercise the
// tagged-object contract without depending on package proto.
type fakeMessage struct {
	N int32
}

func (f *fakeMessage) Encode(c *Codec) error { return c.WriteInt32(f.N) }
func (f *fakeMessage) Decode(c *Codec) error {
	n, err := c.ReadInt32()
	f.N = n
	return err
}

func TestTaggedObjectRoundTrip(t *testing.T) {
	reg := NewClassRegistry()
	reg.Register(42, &fakeMessage{}, func() Decodable { return &fakeMessage{} })

	var buf bytes.Buffer
	w := NewCodec(nil, &buf)
	if err := WriteObject(w, reg, &fakeMessage{N: 99}); err != nil {
		t.Fatal(err)
	}

	r := NewCodec(bytes.NewReader(buf.Bytes()), nil)
	obj, classID, err := ReadObject(r, reg)
	if err != nil {
		t.Fatal(err)
	}
	if classID != 42 {
		t.Fatalf("classID = %d, want 42", classID)
	}
	got, ok := obj.(*fakeMessage)
	if !ok || got.N != 99 {
		t.Fatalf("got %#v", obj)
	}
}

func TestTaggedObjectNull(t *testing.T) {
	reg := NewClassRegistry()

	var buf bytes.Buffer
	w := NewCodec(nil, &buf)
	if err := WriteObject(w, reg, nil); err != nil {
		t.Fatal(err)
	}

	r := NewCodec(bytes.NewReader(buf.Bytes()), nil)
	obj, classID, err := ReadObject(r, reg)
	if err != nil {
		t.Fatal(err)
	}
	if obj != nil || classID != 0 {
		t.Fatalf("expected nil/0, got %#v/%d", obj, classID)
	}
}

func TestTaggedObjectUnregisteredClassIDIsNotFatal(t *testing.T) {
	reg := NewClassRegistry()

	var buf bytes.Buffer
	c := NewCodec(nil, &buf)
	c.WriteUTF("@")
	c.WriteInt16(999)

	r := NewCodec(bytes.NewReader(buf.Bytes()), nil)
	obj, classID, err := ReadObject(r, reg)
	if err != nil {
		t.Fatalf("unregistered class ID must not be a fatal error: %v", err)
	}
	if obj != nil {
		t.Fatalf("expected nil object for unregistered class, got %#v", obj)
	}
	if classID != 999 {
		t.Fatalf("classID = %d, want 999", classID)
	}
}

func TestClassRegistryPreferredIDIsFirstRegistration(t *testing.T) {
	reg := NewClassRegistry()
	sample := &fakeMessage{}
	reg.Register(7, sample, func() Decodable { return &fakeMessage{} })
	reg.Register(8, sample, func() Decodable { return &fakeMessage{} })
	reg.Register(10, sample, func() Decodable { return &fakeMessage{} })

	id, ok := reg.PreferredID(&fakeMessage{N: 1})
	if !ok || id != 7 {
		t.Fatalf("PreferredID = %d, %v, want 7, true", id, ok)
	}

	// All three IDs still decode to the same type.
	for _, id := range []int16{7, 8, 10} {
		inst, ok := reg.New(id)
		if !ok {
			t.Fatalf("class %d not registered", id)
		}
		if _, ok := inst.(*fakeMessage); !ok {
			t.Fatalf("class %d did not produce *fakeMessage", id)
		}
	}
}
