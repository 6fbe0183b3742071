package amount

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   int64
		wantOK bool
	}{
		{"empty", "", 0, false},
		{"eok", "최대 3억원", 300_000_000, true},
		{"compound korean", "기업당 최대 1억 5천만원 지원", 150_000_000, true},
		{"compound no space", "1억5천만원", 150_000_000, true},
		{"man with comma", "5,000만원 이내", 50_000_000, true},
		{"cheonman", "과제당 7천만원", 70_000_000, true},
		{"plain won", "총 50,000,000원", 50_000_000, true},
		{"won sign", "₩12,000,000", 12_000_000, true},
		{"dollar million", "up to $1.5 million per award", 1_500_000, true},
		{"billion", "a 2 billion fund", 2_000_000_000, true},
		{"k suffix", "grants of $500k", 500_000, true},
		{"picks maximum", "1차 2천만원, 2차 최대 5천만원", 50_000_000, true},
		{"headcount ignored", "3천명 대상", 0, false},
		{"months ignored", "지원기간 12개월", 0, false},
		{"year ignored", "2024년 지원사업", 0, false},
		{"date ignored", "접수기간 2024.03.01 ~ 2024.03.31", 0, false},
		{"percent ignored", "자부담 20%", 0, false},
		{"bare number ignored", "phase 3 of 5", 0, false},
		{"glued to letters", "covid19 recovery", 0, false},
		{"unit inside word", "5 kinds of support", 0, false},
		{"fullwidth digits", "최대 ３억원", 300_000_000, true},
		{"fullwidth won sign", "￦５，０００，０００", 5_000_000, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Parse(tc.input)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
