package model

import "testing"

func TestNewID_IsValid(t *testing.T) {
	for i := 0; i < 10; i++ {
		id := NewID()
		if !IsValidID(id) {
			t.Fatalf("NewID() = %q is not a valid id", id)
		}
	}
}

func TestNewID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestIsValidID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"507f1f77bcf86cd799439011", true},
		{"507F1F77BCF86CD799439011", true},
		{"507f1f77bcf86cd79943901", false},   // 23文字
		{"507f1f77bcf86cd7994390111", false}, // 25文字
		{"507f1f77bcf86cd79943901g", false},
		{"", false},
		{"../../etc/passwd", false},
	}
	for _, tt := range tests {
		if got := IsValidID(tt.id); got != tt.want {
			t.Errorf("IsValidID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestCategory_IsValid(t *testing.T) {
	if !CategoryTechnology.IsValid() {
		t.Error("Technology should be valid")
	}
	if Category("Gardening").IsValid() {
		t.Error("Gardening should not be valid")
	}
	if Category("technology").IsValid() {
		t.Error("category match should be case-sensitive")
	}
}
