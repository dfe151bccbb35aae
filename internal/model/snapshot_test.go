package model

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestSnapshotID(t *testing.T) {
	if got := SnapshotID("0xpool", 17000000); got != "0xpool_17000000" {
		t.Fatalf("unexpected id %q", got)
	}
}

func TestTokenSnapshotMissingPrice(t *testing.T) {
	b, err := json.Marshal(TokenSnapshot{ID: "0xt_1", TokenID: "0xt", BlockNumber: 1})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if v, ok := decoded["price"]; !ok || v != nil {
		t.Fatalf("expected null price, got %v", decoded["price"])
	}
}

func TestPoolTokenIDs(t *testing.T) {
	p := Pool{ID: "0xp", Tokens: []Token{{ID: "0xa"}, {ID: "0xb"}}}
	if got := p.TokenIDs(); !reflect.DeepEqual(got, []string{"0xa", "0xb"}) {
		t.Fatalf("token ids mismatch: %v", got)
	}
}
