package classify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/arrest-news-cli/internal/llm"
	"github.com/sells-group/arrest-news-cli/internal/model"
)

func testRecord() model.InputRecord {
	return model.InputRecord{ArrestDate: "3/14/2019", County: "Harris County", StateCode: "TX"}
}

func testWindow() model.Window {
	arrest := time.Date(2019, 3, 14, 0, 0, 0, 0, time.UTC)
	return model.Window{Arrest: arrest, Start: arrest.AddDate(0, 0, -2), End: arrest.AddDate(0, 0, 14)}
}

func published(year int) *time.Time {
	t := time.Date(year, 6, 1, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestPrefilter_TooOld(t *testing.T) {
	p := NewPrefilter(0)
	assert.Equal(t, DefaultCutoffYear, p.CutoffYear)

	assert.True(t, p.TooOld(model.SearchHit{Published: published(2010)}))
	assert.False(t, p.TooOld(model.SearchHit{Published: published(2014)}))
	assert.False(t, p.TooOld(model.SearchHit{}))
}

func TestPrefilter_Unavailable(t *testing.T) {
	p := NewPrefilter(2014)

	tests := []struct {
		name string
		hit  model.SearchHit
		want model.Outcome
	}{
		{"recent date", model.SearchHit{Title: "Raid news", Published: published(2020)}, model.OutcomeManualReview},
		{"title names state", model.SearchHit{Title: "ICE raid in Texas"}, model.OutcomeManualReview},
		{"title has code", model.SearchHit{Title: "Houston, TX arrests"}, model.OutcomeManualReview},
		{"unknown date no mention", model.SearchHit{Title: "Raid news"}, model.OutcomeInvalid},
		{"old date no mention", model.SearchHit{Title: "Raid news", Published: published(2012)}, model.OutcomeInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Unavailable(tt.hit, "TX"))
		})
	}
}

func TestMentionsState(t *testing.T) {
	assert.True(t, MentionsState("Agents arrested 40 people in HOUSTON, TEXAS.", "TX"))
	assert.True(t, MentionsState("the raid in houston, tx on monday", "tx"))
	assert.True(t, MentionsState("(TX)", "TX"))
	assert.False(t, MentionsState("plain text about nothing", "TX"))
	assert.False(t, MentionsState("", "TX"))
	assert.True(t, MentionsState("Held in Puerto Rico", "PR"))
}

func TestRender(t *testing.T) {
	got := Render("Is {location} in {state} between {start} and {end}?", testRecord(), testWindow())
	assert.Equal(t, "Is Harris County, TX in TX between 03/12/2019 and 03/28/2019?", got)
}

func TestLoadQuestions(t *testing.T) {
	qs, err := LoadQuestions("")
	require.NoError(t, err)
	assert.Len(t, qs, 4)

	path := filepath.Join(t.TempDir(), "questions.yaml")
	require.NoError(t, os.WriteFile(path, []byte("questions:\n  - \"Is it about {location}?\"\n  - \"  \"\n  - Was it ICE?\n"), 0644))
	qs, err = LoadQuestions(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Is it about {location}?", "Was it ICE?"}, qs)

	require.NoError(t, os.WriteFile(path, []byte("questions: []\n"), 0644))
	_, err = LoadQuestions(path)
	assert.Error(t, err)

	_, err = LoadQuestions(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestIsNegative(t *testing.T) {
	for _, a := range []string{"No.", "no, it does not", "No it is not", "**No** the text", "No: unrelated", "no", "  \"No, never\"", "## No, heading"} {
		assert.True(t, IsNegative(a), a)
	}
	for _, a := range []string{"Yes, it does.", "Notably, ICE confirmed", "None of the above but yes", "Yes. No arrests were unlawful.", ""} {
		assert.False(t, IsNegative(a), a)
	}
}

func TestClassify_ShortCircuitsOnSecondNegative(t *testing.T) {
	answers := []string{"Yes, Harris County is named.", "No, this is about a labor dispute.", "Yes.", "Yes."}
	asker := &llm.StubAsker{}
	asker.Answer = func(_, _ string) (string, error) {
		return answers[asker.Calls()-1], nil
	}

	c := NewClassifier(asker, DefaultQuestions)
	v, err := c.Classify(context.Background(), "text", testRecord(), testWindow())
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, 2, asker.Calls())
	assert.Equal(t, 2, v.Asked)
	assert.Equal(t, "No, this is about a labor dispute.", v.Explanation)
}

func TestClassify_AllAffirmative(t *testing.T) {
	var asked []string
	asker := &llm.StubAsker{Answer: func(_, q string) (string, error) {
		asked = append(asked, q)
		return "Yes - answer " + q[:4], nil
	}}

	c := NewClassifier(asker, nil)
	v, err := c.Classify(context.Background(), "text", testRecord(), testWindow())
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Equal(t, 4, v.Asked)
	require.Len(t, asked, 4)
	assert.Contains(t, asked[0], "Harris County, TX or TX")
	assert.Contains(t, asked[2], "between 03/12/2019 and 03/28/2019")
	assert.Equal(t, "Yes - answer "+asked[3][:4], v.Explanation)
}

func TestClassify_ServiceError(t *testing.T) {
	asker := &llm.StubAsker{Answer: func(_, _ string) (string, error) {
		return "", errors.New("upstream 500")
	}}

	c := NewClassifier(asker, nil)
	_, err := c.Classify(context.Background(), "text", testRecord(), testWindow())
	require.Error(t, err)

	var se *ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 0, se.Question)
	assert.Contains(t, err.Error(), "question 1")
}

func TestClassify_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	asker := &llm.StubAsker{Answer: func(_, _ string) (string, error) {
		cancel()
		return "", context.Canceled
	}}

	_, err := NewClassifier(asker, nil).Classify(ctx, "text", testRecord(), testWindow())
	assert.ErrorIs(t, err, context.Canceled)
}
