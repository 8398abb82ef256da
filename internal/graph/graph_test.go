package graph

import (
	"log/slog"
	"os"
	"strings"
	"testing"
)

func testParser() *Parser {
	return NewParser(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
}

func TestParse_NilDocument(t *testing.T) {
	if _, err := testParser().Parse(nil); err != ErrInvalidWorkflow {
		t.Fatalf("Parse(nil) error = %v, want ErrInvalidWorkflow", err)
	}
}

func TestParse_MissingNodes(t *testing.T) {
	for name, doc := range map[string]map[string]any{
		"no nodes field": {},
		"nodes scalar":   {"nodes": 42},
		"nodes string":   {"nodes": "oops"},
	} {
		parsed, err := testParser().Parse(doc)
		if err != nil {
			t.Fatalf("%s: Parse: %v", name, err)
		}
		if len(parsed.Nodes) != 0 {
			t.Errorf("%s: nodes = %d, want 0", name, len(parsed.Nodes))
		}
	}
}

func TestParse_NonObjectNodeEntriesSkipped(t *testing.T) {
	doc := map[string]any{
		"nodes": []any{
			"not a node",
			map[string]any{"id": float64(1), "type": "LoadImage"},
			float64(7),
			nil,
		},
	}
	parsed, err := testParser().Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(parsed.Nodes) != 1 {
		t.Fatalf("nodes = %d, want 1", len(parsed.Nodes))
	}
	if parsed.Nodes[0].Key != "LoadImage" {
		t.Errorf("key = %q, want LoadImage", parsed.Nodes[0].Key)
	}
}

func TestParse_KeyCollisionSuffix(t *testing.T) {
	doc := map[string]any{
		"nodes": []any{
			map[string]any{"id": float64(1), "title": "Load Image"},
			map[string]any{"id": float64(2), "title": "Load Image"},
			map[string]any{"id": float64(3), "title": "Load Image"},
		},
	}
	parsed, err := testParser().Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []string{"Load_Image", "Load_Image_2", "Load_Image_3"}
	for i, w := range want {
		if parsed.Nodes[i].Key != w {
			t.Errorf("nodes[%d].Key = %q, want %q", i, parsed.Nodes[i].Key, w)
		}
	}
}

func TestParse_KeyUniqueness(t *testing.T) {
	nodes := []any{}
	for i := 0; i < 20; i++ {
		title := "KSampler"
		if i%3 == 0 {
			title = "K Sampler" // sanitizes to a different base
		}
		nodes = append(nodes, map[string]any{"id": float64(i), "title": title})
	}
	parsed, err := testParser().Parse(map[string]any{"nodes": nodes})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	seen := make(map[string]bool)
	for _, n := range parsed.Nodes {
		if seen[n.Key] {
			t.Fatalf("duplicate key %q", n.Key)
		}
		seen[n.Key] = true
	}
}

func TestParse_KeyDeterminism(t *testing.T) {
	doc := map[string]any{
		"nodes": map[string]any{
			"10": map[string]any{"type": "KSampler"},
			"2":  map[string]any{"type": "KSampler"},
			"1":  map[string]any{"type": "CLIPTextEncode"},
		},
	}
	first, err := testParser().Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := testParser().Parse(doc)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if len(again.Nodes) != len(first.Nodes) {
			t.Fatalf("node count changed: %d vs %d", len(again.Nodes), len(first.Nodes))
		}
		for j := range first.Nodes {
			if again.Nodes[j].Key != first.Nodes[j].Key {
				t.Fatalf("keys not deterministic: nodes[%d] = %q vs %q", j, again.Nodes[j].Key, first.Nodes[j].Key)
			}
		}
	}
}

func TestParse_KeyedNodesNumericOrder(t *testing.T) {
	doc := map[string]any{
		"nodes": map[string]any{
			"10": map[string]any{"type": "Ten"},
			"2":  map[string]any{"type": "Two"},
			"1":  map[string]any{"type": "One"},
		},
	}
	parsed, err := testParser().Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []string{"One", "Two", "Ten"}
	for i, w := range want {
		if parsed.Nodes[i].Type != w {
			t.Errorf("nodes[%d].Type = %q, want %q", i, parsed.Nodes[i].Type, w)
		}
	}
}

func TestParse_DisplayNameResolution(t *testing.T) {
	tests := []struct {
		name     string
		node     map[string]any
		wantName string
		wantKey  string
	}{
		{
			name:     "title wins",
			node:     map[string]any{"id": float64(1), "title": "My Sampler", "type": "KSampler"},
			wantName: "My Sampler",
			wantKey:  "My_Sampler",
		},
		{
			name: "S&R property",
			node: map[string]any{
				"id":         float64(2),
				"type":       "KSampler",
				"properties": map[string]any{"Node name for S&R": "Sampler SR"},
			},
			wantName: "Sampler SR",
			wantKey:  "Sampler_SR",
		},
		{
			name:     "type fallback",
			node:     map[string]any{"id": float64(3), "type": "KSampler"},
			wantName: "KSampler",
			wantKey:  "KSampler",
		},
		{
			name:     "class_type fallback",
			node:     map[string]any{"id": float64(4), "class_type": "CLIPTextEncode"},
			wantName: "CLIPTextEncode",
			wantKey:  "CLIPTextEncode",
		},
		{
			name:     "node_<id> fallback",
			node:     map[string]any{"id": float64(5)},
			wantName: "node_5",
			wantKey:  "node_5",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := testParser().Parse(map[string]any{"nodes": []any{tt.node}})
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			n := parsed.Nodes[0]
			if n.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", n.Name, tt.wantName)
			}
			if n.Key != tt.wantKey {
				t.Errorf("Key = %q, want %q", n.Key, tt.wantKey)
			}
		})
	}
}

func TestParse_SanitizeFallsBackThroughChain(t *testing.T) {
	// Title sanitizes to nothing, so the type takes over.
	doc := map[string]any{
		"nodes": []any{map[string]any{"id": float64(7), "title": "!!!", "type": "KSampler"}},
	}
	parsed, err := testParser().Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.Nodes[0].Key != "KSampler" {
		t.Errorf("key = %q, want KSampler", parsed.Nodes[0].Key)
	}

	// Title and type both sanitize to nothing: node_<id> is the last resort.
	doc = map[string]any{
		"nodes": []any{map[string]any{"id": float64(9), "title": "!!!", "type": "???"}},
	}
	parsed, err = testParser().Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.Nodes[0].Key != "node_9" {
		t.Errorf("key = %q, want node_9", parsed.Nodes[0].Key)
	}
}

func TestParse_DegenerateAllEmptyKeys(t *testing.T) {
	// No title, no type, no id: keys degrade to "node" plus the usual
	// collision suffixes, so uniqueness still holds.
	doc := map[string]any{
		"nodes": []any{
			map[string]any{"title": "!!!"},
			map[string]any{"title": "???"},
		},
	}
	parsed, err := testParser().Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.Nodes[0].Key != "node_" {
		t.Errorf("nodes[0].Key = %q, want node_", parsed.Nodes[0].Key)
	}
	if parsed.Nodes[1].Key != "node__2" {
		t.Errorf("nodes[1].Key = %q, want node__2", parsed.Nodes[1].Key)
	}
}

func TestParse_NodeIDCoercion(t *testing.T) {
	doc := map[string]any{
		"nodes": []any{
			map[string]any{"id": float64(3)},
			map[string]any{"ID": float64(4)},
			map[string]any{"uid": "5"},
			map[string]any{"id": "not a number"},
			map[string]any{},
		},
	}
	parsed, err := testParser().Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []*float64{f(3), f(4), f(5), nil, nil}
	for i, w := range want {
		got := parsed.Nodes[i].ID
		switch {
		case w == nil && got != nil:
			t.Errorf("nodes[%d].ID = %v, want nil", i, *got)
		case w != nil && (got == nil || *got != *w):
			t.Errorf("nodes[%d].ID = %v, want %v", i, got, *w)
		}
	}
}

func TestParse_WorkflowID(t *testing.T) {
	parsed, err := testParser().Parse(map[string]any{"workflow_id": "wf_existing", "nodes": []any{}})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.WorkflowID != "wf_existing" {
		t.Errorf("WorkflowID = %q, want wf_existing", parsed.WorkflowID)
	}

	parsed, err = testParser().Parse(map[string]any{"nodes": []any{}})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !strings.HasPrefix(parsed.WorkflowID, "wf_") {
		t.Errorf("generated WorkflowID = %q, want wf_ prefix", parsed.WorkflowID)
	}
}

func TestParseBytes_InvalidJSON(t *testing.T) {
	if _, err := testParser().ParseBytes([]byte("{not json")); err == nil {
		t.Fatal("ParseBytes accepted malformed JSON")
	}
}

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		value, fallback, want string
	}{
		{"Load Image", "x", "Load_Image"},
		{"  spaced   out  ", "x", "spaced_out"},
		{"emoji🎨name", "x", "emojiname"},
		{"汉字", "fallback name", "fallback_name"},
		{"", "", ""},
		{"___", "x", "___"},
	}
	for _, tt := range tests {
		if got := sanitizeKey(tt.value, tt.fallback); got != tt.want {
			t.Errorf("sanitizeKey(%q, %q) = %q, want %q", tt.value, tt.fallback, got, tt.want)
		}
	}
}

func f(v float64) *float64 { return &v }
