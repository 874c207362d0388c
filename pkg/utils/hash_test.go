package utils

import "testing"

func TestStructuralHash(t *testing.T) {
	tests := []struct {
		name  string
		a, b  []any
		equal bool
	}{
		{
			name:  "map key order",
			a:     []any{"popularity", map[string]any{"limit": 10, "view_weight": 1.5}},
			b:     []any{"popularity", map[string]any{"view_weight": 1.5, "limit": 10}},
			equal: true,
		},
		{
			name:  "int and float64 of same value",
			a:     []any{map[string]any{"limit": 3}},
			b:     []any{map[string]any{"limit": 3.0}},
			equal: true,
		},
		{
			name:  "nested maps",
			a:     []any{map[string]any{"x": map[string]any{"b": 1, "a": "y"}}},
			b:     []any{map[string]any{"x": map[string]any{"a": "y", "b": 1}}},
			equal: true,
		},
		{
			name:  "nil and empty map are distinct from each other",
			a:     []any{nil},
			b:     []any{map[string]any{}},
			equal: false,
		},
		{
			name:  "different values",
			a:     []any{map[string]any{"limit": 3}},
			b:     []any{map[string]any{"limit": 4}},
			equal: false,
		},
		{
			name:  "part boundaries",
			a:     []any{"ab", "c"},
			b:     []any{"a", "bc"},
			equal: false,
		},
		{
			name:  "string vs number",
			a:     []any{"1"},
			b:     []any{1},
			equal: false,
		},
		{
			name:  "slice order matters",
			a:     []any{[]any{"a", "b"}},
			b:     []any{[]any{"b", "a"}},
			equal: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ha, hb := StructuralHash(tt.a...), StructuralHash(tt.b...)
			if (ha == hb) != tt.equal {
				t.Fatalf("StructuralHash(%v)=%x, StructuralHash(%v)=%x, 期望相等=%v", tt.a, ha, tt.b, hb, tt.equal)
			}
			ka, kb := StructuralKey(tt.a...), StructuralKey(tt.b...)
			if (ka == kb) != tt.equal {
				t.Fatalf("StructuralKey(%v)=%q, StructuralKey(%v)=%q, 期望相等=%v", tt.a, ka, tt.b, kb, tt.equal)
			}
		})
	}
}

func TestMergeLabel(t *testing.T) {
	tests := []struct {
		name     string
		existing Label
		incoming Label
		want     Label
	}{
		{"append", Label{"popularity", "strategy"}, Label{"trending", "strategy"}, Label{"popularity|trending", "strategy"}},
		{"duplicate value", Label{"popularity|trending", "strategy"}, Label{"trending", "strategy"}, Label{"popularity|trending", "strategy"}},
		{"new source", Label{"0", "aggregate"}, Label{"1", "filter"}, Label{"0|1", "aggregate,filter"}},
		{"empty existing", Label{}, Label{"x", "s"}, Label{"x", "s"}},
		{"empty incoming", Label{"x", "s"}, Label{}, Label{"x", "s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MergeLabel(tt.existing, tt.incoming); got != tt.want {
				t.Errorf("MergeLabel = %+v, want %+v", got, tt.want)
			}
		})
	}
}
