package tomlkeys

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTableAndDottedKeysFlattenAlike(t *testing.T) {
	for _, input := range []string{
		"[logging]\nbuffer-size = 4096\n",
		"logging.buffer_size = 4096\n",
		"[Logging]\nBUFFER_SIZE = 4096\n",
	} {
		table, err := Decode([]byte(input))
		if err != nil {
			t.Fatalf("decode %q: %v", input, err)
		}
		values := Flatten(table)
		if got := values.Int("logging.buffer-size", 0); got != 4096 {
			t.Fatalf("%q: expected 4096, got %d", input, got)
		}
	}
}

func TestNormalizeKeepsFirstSpelling(t *testing.T) {
	normalized := Normalize(map[string]any{
		"Polling_Interval": "30s",
		"polling-interval": "60s",
		"watcher":          map[string]any{"Automatic_Refresh": false},
	})
	want := map[string]any{
		"polling-interval": "30s",
		"watcher":          map[string]any{"automatic-refresh": false},
	}
	if diff := cmp.Diff(want, normalized); diff != "" {
		t.Fatalf("normalized (-want +got):\n%s", diff)
	}
}

func TestValuesAccessors(t *testing.T) {
	values := Values{
		"flag":        true,
		"toggle":      "no",
		"count":       int64(7),
		"name":        "  hello ",
		"paths":       []any{"a", "", 3, "b"},
		"single-path": "c",
	}
	if !values.Bool("flag", false) || values.Bool("toggle", true) || !values.Bool("missing", true) {
		t.Fatal("unexpected bool values")
	}
	if values.Int("count", 0) != 7 || values.Int("name", -1) != -1 {
		t.Fatal("unexpected int values")
	}
	if values.String("name", "") != "hello" || values.String("count", "fallback") != "fallback" {
		t.Fatal("unexpected string values")
	}
	if diff := cmp.Diff([]string{"a", "b"}, values.Strings("paths")); diff != "" {
		t.Fatalf("paths (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"c"}, values.Strings("single_path")); diff != "" {
		t.Fatalf("single path (-want +got):\n%s", diff)
	}
}

func TestArrayTablesStayValues(t *testing.T) {
	table, err := Decode([]byte(`[[temporal.servers]]
name = "local"
API_KEY = "k"

[[temporal.servers]]
name = "cloud"
`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	values := Flatten(table)
	servers, ok := values["temporal.servers"].([]map[string]any)
	if !ok {
		t.Fatalf("expected []map[string]any, got %T", values["temporal.servers"])
	}
	if len(servers) != 2 || servers[0]["name"] != "local" {
		t.Fatalf("unexpected servers %v", servers)
	}
	if _, ok := servers[0]["API_KEY"]; !ok {
		t.Fatal("keys inside array tables are kept as written")
	}
}
