package wire

import (
	"bytes"
	"testing"
)

// FuzzDecode checks that decoding arbitrary bytes doesn't panic and that
// anything Decode accepts re-encodes to a fixed point.
func FuzzDecode(f *testing.F) {
	seeds := []*Packet{
		{ID: "p1", From: "origin", Payload: &Event{ChangedObject: &UserAddedEvent{User: sampleUser()}}},
		{ID: "p2", Payload: &Event{ChangedObject: &MatchCreatedEvent{Match: sampleMatch()}}},
		{ID: "p3", Payload: &Push{Data: &RealtimeScorePush{}}},
		{ID: "p4", Payload: &Acknowledgement{PacketID: "p3"}},
	}
	for _, p := range seeds {
		b, err := Encode(p)
		if err != nil {
			f.Fatal(err)
		}
		f.Add(b)
	}
	f.Add(wrap(fieldPacketEvent, wrap(fieldEventMatchCreated, wrap(fieldEventEntity, matchWithExtras([]byte{0x38, 0x01})))))
	f.Add([]byte{})
	f.Add([]byte{0xff, 0xff})

	f.Fuzz(func(t *testing.T, data []byte) {
		p, err := Decode(data)
		if err != nil {
			return
		}
		first, err := Encode(p)
		if err != nil {
			t.Fatalf("encode decoded packet: %v", err)
		}
		again, err := Decode(first)
		if err != nil {
			t.Fatalf("decode re-encoded packet: %v", err)
		}
		second, err := Encode(again)
		if err != nil {
			t.Fatalf("encode second pass: %v", err)
		}
		if !bytes.Equal(first, second) {
			t.Fatalf("re-encoding is not stable:\n%x\n%x", first, second)
		}
	})
}
