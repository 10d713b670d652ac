package query

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/arrest-news-cli/internal/model"
)

func record(date string) model.InputRecord {
	return model.InputRecord{Row: 2, ArrestDate: date, County: "Terrebonne", StateCode: "LA"}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2/10/17", time.Date(2017, 2, 10, 0, 0, 0, 0, time.UTC)},
		{"12/01/19", time.Date(2019, 12, 1, 0, 0, 0, 0, time.UTC)},
		{"3/5/2018", time.Date(2018, 3, 5, 0, 0, 0, 0, time.UTC)},
		{"2020-07-04", time.Date(2020, 7, 4, 0, 0, 0, 0, time.UTC)},
		{" 1/1/99 ", time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestParseDate_Invalid(t *testing.T) {
	for _, in := range []string{"", "yesterday", "13/45/2019", "2019/02/10"} {
		_, err := ParseDate(in)
		assert.Error(t, err, in)
	}
}

func TestGenerate_DefaultTemplate(t *testing.T) {
	g := NewGenerator(nil, 2, 14)

	qs, err := g.Generate(record("2/10/17"))
	require.NoError(t, err)
	require.Len(t, qs, 1)

	q := qs[0]
	assert.Equal(t, "Immigration Raid/Arrest, Terrebonne, LA", q.Text)
	assert.Equal(t, "02/10/2017", q.Window.ArrestParam())
	assert.Equal(t, "02/08/2017", q.Window.StartParam())
	assert.Equal(t, "02/24/2017", q.Window.EndParam())
}

func TestGenerate_MultipleTemplates(t *testing.T) {
	g := NewGenerator([]string{
		"Immigration Raid/Arrest, {county}, {state}",
		"ICE arrests {county} County {state_name}",
	}, 1, 7)

	qs, err := g.Generate(record("12/30/2019"))
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, "ICE arrests Terrebonne County Louisiana", qs[1].Text)
	assert.Equal(t, "ICE arrests {county} County {state_name}", qs[1].Pattern)
	assert.Equal(t, "12/29/2019", qs[1].Window.StartParam())
	assert.Equal(t, "01/06/2020", qs[1].Window.EndParam())
}

func TestGenerate_MalformedDate(t *testing.T) {
	g := NewGenerator(nil, 2, 14)

	_, err := g.Generate(record("not a date"))
	require.Error(t, err)

	var mie *MalformedInputError
	require.True(t, errors.As(err, &mie))
	assert.Equal(t, 2, mie.Row)
	assert.Equal(t, "arrestdate", mie.Field)
}

func TestGenerate_MissingCounty(t *testing.T) {
	g := NewGenerator(nil, 2, 14)
	rec := record("2/10/17")
	rec.County = " "

	_, err := g.Generate(rec)
	var mie *MalformedInputError
	require.True(t, errors.As(err, &mie))
	assert.Equal(t, "CountyName", mie.Field)
}

func TestStateName(t *testing.T) {
	assert.Equal(t, "Louisiana", StateName("LA"))
	assert.Equal(t, "Puerto Rico", StateName(" pr "))
	assert.Equal(t, "", StateName("ZZ"))
}
