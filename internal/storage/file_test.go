package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestJSONFileWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "report.json")
	doc := map[string]interface{}{"total_return": 0.5, "pools": []interface{}{"a", "b"}}

	if err := NewJSONFile(path).Write(doc); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !reflect.DeepEqual(doc, decoded) {
		t.Fatalf("document mismatch: %+v != %+v", doc, decoded)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temporary file left behind")
	}
}
