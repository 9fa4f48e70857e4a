package division

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{
			"Further_Consolidated_Appropriations_Act_2024_Public_Law.html - Division C - DEPARTMENT OF HOMELAND SECURITY",
			"Further_Consolidated_Appropriations_Act_2024_Public_Law_html_Division_C_DEPARTMENT_OF_HOMELAND_SECURITY",
		},
		{"LABOR, HEALTH, AND EDUCATION", "LABOR_HEALTH_AND_EDUCATION"},
		{"plain", "plain"},
		{"a -- b", "a_b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SafeName(tt.in), tt.in)
	}
}

func TestDefaultVocabulary(t *testing.T) {
	v := Default()
	assert.Equal(t, 14, v.Len())
	assert.True(t, v.Contains("DEPARTMENT OF HOMELAND SECURITY"))
	assert.False(t, v.Contains("department of homeland security"))

	store, ok := v.StoreFor("OTHER MATTERS (FURTHER)")
	require.True(t, ok)
	assert.Equal(t, "Further_Consolidated_Appropriations_Act_2024_Public_Law_html_Division_G_OTHER_MATTERS", store)

	label, ok := v.LabelForStore(store)
	require.True(t, ok)
	assert.Equal(t, "OTHER MATTERS (FURTHER)", label)
}

func TestNewVocabularyRejectsDuplicates(t *testing.T) {
	_, err := NewVocabulary([]Entry{{Label: "A", Store: "a"}, {Label: "A", Store: "b"}})
	require.Error(t, err)

	_, err = NewVocabulary([]Entry{{Label: "A", Store: "x y"}, {Label: "B", Store: "x_y"}})
	require.Error(t, err)

	_, err = NewVocabulary(nil)
	require.Error(t, err)
}

func TestNewVocabularyDerivesStore(t *testing.T) {
	v, err := NewVocabulary([]Entry{{Label: "LEGISLATIVE BRANCH"}})
	require.NoError(t, err)
	store, ok := v.StoreFor("LEGISLATIVE BRANCH")
	require.True(t, ok)
	assert.Equal(t, "LEGISLATIVE_BRANCH", store)
}

func TestUnknown(t *testing.T) {
	v := Default()
	got := v.Unknown([]string{"DEPARTMENT OF DEFENSE", "SPACE FORCE", "LEGISLATIVE BRANCH", "NAVY"})
	assert.Equal(t, []string{"SPACE FORCE", "NAVY"}, got)
	assert.Nil(t, v.Unknown(v.Labels()))
}

func TestDocumentText(t *testing.T) {
	d := &Document{Blocks: []string{"one", "two", "three"}}
	assert.Equal(t, "one\ntwo\nthree", d.Text())
	assert.Equal(t, "", (&Document{}).Text())
}
