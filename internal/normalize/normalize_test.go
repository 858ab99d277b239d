package normalize

import "testing"

func TestNumber(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"12,5", 12.5},
		{"12.5", 12.5},
		{"250 kcal", 250},
		{"  0,8 g ", 0.8},
		{"", 0},
		{"g", 0},
		{",", 0},
		{"1.234,5", 0}, // two separators do not parse
		{"-3", 3},
		{"abc", 0},
	}

	for _, tt := range tests {
		if got := Number(tt.input); got != tt.want {
			t.Errorf("Number(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestFirstNumber(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"250 kcal = 1046 kJ", 250},
		{"12,5 g", 12.5},
		{"Traços", 0},
		{"**", 0},
	}

	for _, tt := range tests {
		if got := FirstNumber(tt.input); got != tt.want {
			t.Errorf("FirstNumber(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestPortion(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"30 g (1 dosador)", 30},
		{"Porção de 12,5g", 12.5},
		{"2 scoops 40 gramas", 40},
		{"1 cápsula", 0},
		{"", 0},
	}

	for _, tt := range tests {
		if got := Portion(tt.input); got != tt.want {
			t.Errorf("Portion(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestStripUnitOnly(t *testing.T) {
	tests := []struct {
		value, unit, want string
	}{
		{"g", "g", "0"},
		{"kcal", "kcal", "0"},
		{" , mg", "mg", "0"},
		{".", "g", "0"},
		{"", "g", "0"},
		{"12.5 g", "g", "12.5 g"},
		{"0", "g", "0"},
	}

	for _, tt := range tests {
		if got := StripUnitOnly(tt.value, tt.unit); got != tt.want {
			t.Errorf("StripUnitOnly(%q, %q) = %q, want %q", tt.value, tt.unit, got, tt.want)
		}
	}
}

func TestFold(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"Proteínas", "proteinas"},
		{"  Valor   Energético ", "valor energetico"},
		{"AÇÚCARES", "acucares"},
		{"Sódio (mg)", "sodio (mg)"},
	}

	for _, tt := range tests {
		if got := Fold(tt.input); got != tt.want {
			t.Errorf("Fold(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNumberDeterministic(t *testing.T) {
	for i := 0; i < 3; i++ {
		if Number("7,25 g") != 7.25 {
			t.Fatal("Number is not stable across calls")
		}
	}
}
