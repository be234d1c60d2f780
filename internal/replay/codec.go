package replay

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"parkarena/broker/internal/match"
)

// EncodeSnapshot converts a snapshot into a protobuf Struct blob so frame
// payloads stay self-describing without a generated schema.
func EncodeSnapshot(snapshot match.Snapshot) ([]byte, error) {
	//1.- Route through the JSON shape so field names match the wire format clients already see.
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	//2.- Wrap the generic map in a Struct and marshal it with the protobuf runtime.
	message, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return proto.Marshal(message)
}

// DecodeSnapshot reverses EncodeSnapshot.
func DecodeSnapshot(payload []byte) (match.Snapshot, error) {
	var message structpb.Struct
	if err := proto.Unmarshal(payload, &message); err != nil {
		return match.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	raw, err := message.MarshalJSON()
	if err != nil {
		return match.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	var snapshot match.Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return match.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snapshot, nil
}
