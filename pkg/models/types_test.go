package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSectionStatus(t *testing.T) {
	for _, s := range []SectionStatus{StatusPending, StatusInProgress, StatusCompleted, StatusFailed} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, SectionStatus("drafting").Valid())

	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusInProgress.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.Panics(t, func() { SectionStatus("drafting").Terminal() })
}

func TestOutlineItemValidate(t *testing.T) {
	require.NoError(t, OutlineItem{Title: "Intro", Description: "Why"}.Validate())
	assert.ErrorContains(t, OutlineItem{Title: "  ", Description: "Why"}.Validate(), "missing a title")
	assert.ErrorContains(t, OutlineItem{Title: "Intro"}.Validate(), `"Intro" is missing a description`)
}

func TestPaperConfigValidate(t *testing.T) {
	valid := DefaultPaperConfig()
	valid.Title = "Random Walks on Expanders"
	valid.RawSketch = "spectral gap implies rapid mixing"
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*PaperConfig)
		want   string
	}{
		{"missing title", func(p *PaperConfig) { p.Title = " " }, "title is required"},
		{"missing sketch", func(p *PaperConfig) { p.RawSketch = "" }, "sketch is required"},
		{"unknown tone", func(p *PaperConfig) { p.Tone = "Shouty" }, "Formal Academic, Casual/Blog, Technical Report"},
		{"unknown template", func(p *PaperConfig) { p.Template = "LNCS" }, "unknown template"},
		{"unknown length", func(p *PaperConfig) { p.TargetLength = "Tweet" }, "unknown target length"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			assert.ErrorContains(t, p.Validate(), tt.want)
		})
	}
}

func TestDefaultPaperConfig(t *testing.T) {
	p := DefaultPaperConfig()
	assert.Empty(t, p.Title)
	assert.Equal(t, ToneFormalAcademic, p.Tone)
	assert.Equal(t, TemplateStandardArticle, p.Template)
	assert.Equal(t, LengthStandardArticle, p.TargetLength)
	assert.Error(t, p.Validate())
}

func TestJoinLists(t *testing.T) {
	assert.Equal(t, "Standard Article, IEEE, ACM, Minimalist", JoinTemplates())
	assert.Contains(t, JoinPaperLengths(), "Dissertation/Book (40+ pages)")
}
