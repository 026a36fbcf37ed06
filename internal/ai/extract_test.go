package ai

import (
	"errors"
	"slices"
	"testing"
)

func TestExtractIndexArray(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    []int
		wantErr error
	}{
		{"bare", "[2, 5, 9]", []int{2, 5, 9}, nil},
		{"prose around", "Sure! Here are the picks: [0,3] hope that helps", []int{0, 3}, nil},
		{"fenced", "```json\n[1, 4]\n```", []int{1, 4}, nil},
		{"empty array", "Nothing relevant today: []", []int{}, nil},
		{"first array wins", "[1] and later [7, 8]", []int{1}, nil},
		{"nested arrays", "[[1,2],[3]]", []int{}, nil},
		{"bracket prose skipped", "[note] the answer is [6]", []int{6}, nil},
		{"string brackets", `["a]b", 3]`, []int{3}, nil},
		{"string numbers", `["4", "x", 5.5, 6]`, []int{4, 6}, nil},
		{"no array", "I could not decide.", nil, ErrNoArray},
		{"unterminated", "[1, 2", nil, ErrNoArray},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractIndexArray(tt.text)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
