package tier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromStorageClass(t *testing.T) {
	tests := []struct {
		name  string
		class string
		want  Tier
	}{
		{name: "standard", class: "STANDARD", want: Standard},
		{name: "lowercase", class: "standard_ia", want: StandardIA},
		{name: "whitespace", class: "  GLACIER  ", want: Glacier},
		{name: "glacier instant retrieval", class: "GLACIER_IR", want: GlacierIR},
		{name: "deep archive", class: "DEEP_ARCHIVE", want: DeepArchive},
		{name: "intelligent tiering", class: "INTELLIGENT_TIERING", want: IntelligentTiering},
		{name: "empty", class: "", want: Unknown},
		{name: "unrecognized", class: "PLAID", want: Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromStorageClass(tt.class))
		})
	}
}

func TestTotalsAddMerge(t *testing.T) {
	var a Totals
	a.Add(100)
	a.Add(200)
	assert.Equal(t, Totals{Bytes: 300, Objects: 2}, a)

	var b Totals
	b.Add(0)
	assert.Equal(t, Totals{Bytes: 0, Objects: 1}, b)

	a.Merge(b)
	assert.Equal(t, Totals{Bytes: 300, Objects: 3}, a)
}
