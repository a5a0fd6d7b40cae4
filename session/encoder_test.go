package session

import (
	"testing"
	"time"
)

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	data, err := encMode.Marshal(record{Version: 9, UserID: "u1"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := Decode(data); err == nil {
		t.Fatal("expected unknown version to be rejected")
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	s := &Session{SessionID: "x", UserID: "u1", CreatedAt: time.UnixMilli(1), LastActivityAt: time.UnixMilli(2)}
	a, err := Encode(s)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	b, _ := Encode(s)
	if string(a) != string(b) {
		t.Fatal("expected identical encodings")
	}
}

func FuzzDecode(f *testing.F) {
	seed, _ := Encode(&Session{UserID: "u1", CreatedAt: time.UnixMilli(1)})
	f.Add(seed)
	f.Add([]byte{})
	f.Add([]byte{0xff})
	f.Fuzz(func(t *testing.T, data []byte) {
		s, err := Decode(data)
		if err == nil && s.UserID == "" {
			t.Fatal("decoded session without user id")
		}
	})
}
