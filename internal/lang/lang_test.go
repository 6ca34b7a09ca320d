package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Chinese", "zh"},
		{"中文", "zh"},
		{" english ", "en"},
		{"英文", "en"},
		{"Japanese", "ja"},
		{"VIETNAMESE", "vi"},
		{"ja", "ja"},
		{"pt-BR", "pt"},
		{"eng", "en"},
		{"chs", "zh"},
		{"auto", ""},
		{"", ""},
		{"klingonese", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Code(tt.in))
		})
	}
}

func TestResolveAndName(t *testing.T) {
	tag, err := Resolve("Korean")
	require.NoError(t, err)
	assert.Equal(t, language.Korean, tag)
	assert.Equal(t, "Korean", Name(tag))

	_, err = Resolve("nonsense language")
	assert.Error(t, err)

	assert.Equal(t, "", Name(language.Und))
}

func TestServiceName(t *testing.T) {
	assert.Equal(t, "English", ServiceName("en"))
	assert.Equal(t, "Chinese", ServiceName("中文"))
	assert.Equal(t, "Japanese", ServiceName("Japanese"))
	assert.Equal(t, "auto", ServiceName("AUTO"))
	assert.Equal(t, "Elvish", ServiceName("Elvish"))
}

func TestMatches(t *testing.T) {
	assert.True(t, Matches("en", language.English))
	assert.True(t, Matches("en-US", language.English))
	assert.True(t, Matches("eng", language.English))
	assert.True(t, Matches("chs", language.Chinese))
	assert.True(t, Matches("zh_Hans", language.Chinese))
	assert.False(t, Matches("ja", language.English))
	assert.False(t, Matches("", language.English))
	assert.False(t, Matches("en", language.Und))
}
