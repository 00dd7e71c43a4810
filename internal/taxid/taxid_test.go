package taxid

import "testing"

func TestValid_CPF(t *testing.T) {
	tests := []struct {
		name     string
		document string
		want     bool
	}{
		{"valid unformatted", "52998224725", true},
		{"valid formatted", "529.982.247-25", true},
		{"wrong first check digit", "52998224735", false},
		{"wrong second check digit", "52998224726", false},
		{"all identical digits", "11111111111", false},
		{"all zeros", "00000000000", false},
		{"too short", "5299822472", false},
		{"too long", "529982247251", false},
		{"empty", "", false},
		{"letters only", "abcdefghijk", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Valid(tt.document); got != tt.want {
				t.Errorf("Valid(%q) = %v, want %v", tt.document, got, tt.want)
			}
		})
	}
}

func TestValid_CNPJ(t *testing.T) {
	tests := []struct {
		name     string
		document string
		want     bool
	}{
		{"valid unformatted", "11222333000181", true},
		{"valid formatted", "11.222.333/0001-81", true},
		{"wrong check digits", "11222333000182", false},
		{"all identical digits", "11111111111111", false},
		{"thirteen digits", "1122233300018", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Valid(tt.document); got != tt.want {
				t.Errorf("Valid(%q) = %v, want %v", tt.document, got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		document string
		want     Kind
	}{
		{"529.982.247-25", KindCPF},
		{"11.222.333/0001-81", KindCNPJ},
		{"123", KindInvalid},
		{"", KindInvalid},
	}

	for _, tt := range tests {
		if got := Classify(tt.document); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.document, got, tt.want)
		}
	}
}
