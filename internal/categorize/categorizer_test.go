package categorize

import "testing"

func TestParseLabel(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{"valid label", `{"category": "sports"}`, "sports", false},
		{"upper-cased label is normalized", `{"category": "Politics"}`, "politics", false},
		{"padded label is trimmed", `{"category": " crypto "}`, "crypto", false},
		{"unknown label falls back", `{"category": "finance"}`, FallbackLabel, false},
		{"empty label falls back", `{"category": ""}`, FallbackLabel, false},
		{"extra fields are ignored", `{"category": "tech", "confidence": 0.9}`, "tech", false},
		{"invalid json errors", `category: sports`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLabel(tt.content)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLabel() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("parseLabel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseBatchLabels(t *testing.T) {
	tests := []struct {
		name    string
		content string
		n       int
		want    []string
		wantErr bool
	}{
		{"aligned labels", `{"categories": ["sports", "crypto"]}`, 2, []string{"sports", "crypto"}, false},
		{"labels are normalized", `{"categories": [" Politics ", "finance"]}`, 2, []string{"politics", FallbackLabel}, false},
		{"count mismatch errors", `{"categories": ["sports"]}`, 2, nil, true},
		{"invalid json errors", `["sports", "crypto"]`, 2, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseBatchLabels(tt.content, tt.n)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseBatchLabels() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("label[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNormalizeLabelClosedSet(t *testing.T) {
	for _, label := range Labels {
		if got := normalizeLabel(label); got != label {
			t.Errorf("normalizeLabel(%q) = %q", label, got)
		}
	}
	if got := normalizeLabel("not-a-label"); got != FallbackLabel {
		t.Errorf("normalizeLabel(unknown) = %q, want %q", got, FallbackLabel)
	}
}
