package settings

import (
	"encoding/json"
	"testing"
	"time"
)

func TestStoreDBConfigCopiesValues(t *testing.T) {
	values := map[string]json.RawMessage{SiteNameKey: json.RawMessage(`"Deckly"`)}
	StoreDBConfig(time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), values)
	values[SiteNameKey] = json.RawMessage(`"mutated"`)

	raw, ok := DBConfigValue(SiteNameKey)
	if !ok {
		t.Fatalf("expected %s to be present", SiteNameKey)
	}
	if string(raw) != `"Deckly"` {
		t.Fatalf("expected snapshot to be isolated from caller map, got %s", raw)
	}
	if _, ok := DBConfigValue("MISSING"); ok {
		t.Fatalf("expected missing key to be absent")
	}
}
