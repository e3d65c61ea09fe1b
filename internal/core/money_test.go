package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"12.34", 1234, false},
		{"12,34", 1234, false},
		{"12", 1200, false},
		{"0.5", 50, false},
		{".5", 50, false},
		{"12.344", 1234, false}, // rounds down
		{"12.345", 1235, false}, // half rounds up
		{"12.346", 1235, false}, // rounds up
		{"12.3", 1230, false},
		{"-12.34", -1234, false},
		{"-0.01", -1, false},
		{"+7", 700, false},
		{"", 0, true},
		{"0", 0, true},
		{"0.00", 0, true},
		{"-0", 0, true},
		{"abc", 0, true},
		{"1.2.3", 0, true},
		{"12a", 0, true},
		{"99999999999999999999", 0, true}, // overflow
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDecimalToCents(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %d", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMoneyAbs(t *testing.T) {
	if got := (Money{Cents: -150}).Abs().Cents; got != 150 {
		t.Errorf("got %d, want 150", got)
	}
	if got := (Money{Cents: 150}).Abs().Cents; got != 150 {
		t.Errorf("got %d, want 150", got)
	}
}

func TestMoneyUnits(t *testing.T) {
	if got := (Money{Cents: 1234}).Units(); got != 12.34 {
		t.Errorf("got %v, want 12.34", got)
	}
	if got := (Money{Cents: -50}).Units(); got != -0.5 {
		t.Errorf("got %v, want -0.5", got)
	}
}
