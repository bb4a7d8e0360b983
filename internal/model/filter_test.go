package model

import (
	"errors"
	"testing"
)

func TestNewFilterSpec(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		region  string
		keyword string
		wantErr error
	}{
		{name: "valid", region: "浙江", keyword: "数据"},
		{name: "keyword is trimmed but kept", region: "浙江省", keyword: " 科技 "},
		{name: "blank keyword", region: "浙江", keyword: "   ", wantErr: ErrEmptyKeyword},
		{name: "unknown region", region: "Atlantis", keyword: "数据", wantErr: ErrUnknownRegion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f, err := NewFilterSpec(tt.region, tt.keyword)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if f.Region != "浙江省" {
				t.Errorf("Region = %q, want 浙江省", f.Region)
			}
			if f.Keyword == "" || f.Keyword[0] == ' ' {
				t.Errorf("Keyword = %q, want trimmed non-empty", f.Keyword)
			}
		})
	}
}

func TestFilterSpecValidate(t *testing.T) {
	t.Parallel()

	if err := (FilterSpec{Region: "河北省", Keyword: "协会"}).Validate(); err != nil {
		t.Errorf("valid filter rejected: %v", err)
	}
	if err := (FilterSpec{Keyword: "协会"}).Validate(); !errors.Is(err, ErrNoRegion) {
		t.Errorf("missing region error = %v, want ErrNoRegion", err)
	}
}
