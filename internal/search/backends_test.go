package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/arrest-news-cli/internal/model"
	"github.com/sells-group/arrest-news-cli/pkg/bing"
	"github.com/sells-group/arrest-news-cli/pkg/serpapi"
	"github.com/sells-group/arrest-news-cli/pkg/serpapi/mocks"
)

func windowedQuery() model.Query {
	q := testQuery()
	q.Window = model.Window{
		Arrest: time.Date(2017, 2, 10, 0, 0, 0, 0, time.UTC),
		Start:  time.Date(2017, 2, 8, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2017, 2, 24, 0, 0, 0, 0, time.UTC),
	}
	return q
}

func TestSerpAPIBackend_MapsResults(t *testing.T) {
	m := mocks.NewMockClient(t)
	m.On("Search", mock.Anything, serpapi.SearchRequest{
		Query: "Immigration Raid/Arrest, Terrebonne, LA",
		Start: "02/08/2017",
		End:   "02/24/2017",
		Num:   10,
	}).Return(&serpapi.SearchResponse{OrganicResults: []serpapi.OrganicResult{
		{Title: "ICE raid", Link: "https://a.example", Date: "Feb 12, 2017"},
		{Title: "", Link: "https://b.example"},
	}}, nil)

	hits, err := NewSerpAPIBackend(m).Search(context.Background(), windowedQuery(), 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, "ICE raid", hits[0].Title)
	year, ok := hits[0].PublishedYear()
	assert.True(t, ok)
	assert.Equal(t, 2017, year)
	assert.Equal(t, "Feb 12, 2017", hits[0].DateColumn())

	assert.Equal(t, "N/A", hits[1].Title)
	_, ok = hits[1].PublishedYear()
	assert.False(t, ok)
	assert.Equal(t, "N/A", hits[1].DateColumn())
}

func TestSerpAPIBackend_RateLimitBecomesThrottle(t *testing.T) {
	m := mocks.NewMockClient(t)
	m.On("Search", mock.Anything, mock.Anything).
		Return(nil, &serpapi.RateLimitError{RetryAfter: 2 * time.Second})

	_, err := NewSerpAPIBackend(m).Search(context.Background(), windowedQuery(), 10)

	var te *ThrottledError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 2*time.Second, te.RetryAfter)
}

func TestBingBackend_MapsResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2017-02-08..2017-02-24", r.URL.Query().Get("freshness"))
		_, _ = w.Write([]byte(`{"value":[{"name":"Raid","url":"https://n.example/1","datePublished":"2017-02-12T10:00:00.0000000Z"}]}`))
	}))
	defer srv.Close()

	b := NewBingBackend(bing.NewClient("k", bing.WithBaseURL(srv.URL)))
	hits, err := b.Search(context.Background(), windowedQuery(), 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Raid", hits[0].Title)
	year, ok := hits[0].PublishedYear()
	require.True(t, ok)
	assert.Equal(t, 2017, year)
}

func TestStubBackend(t *testing.T) {
	b := &StubBackend{Hits: []model.SearchHit{{URL: "1"}, {URL: "2"}, {URL: "3"}}}

	hits, err := b.Search(context.Background(), testQuery(), 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	b.Err = errors.New("boom")
	_, err = b.Search(context.Background(), testQuery(), 2)
	assert.Error(t, err)
}

func TestNewBackend(t *testing.T) {
	b, err := NewBackend("serpapi", "k", "", "", "", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "serpapi", b.Name())

	b, err = NewBackend("bing", "", "", "k", "", 0)
	require.NoError(t, err)
	assert.Equal(t, "bing", b.Name())

	_, err = NewBackend("yahoo", "", "", "", "", 0)
	assert.Error(t, err)
}

func TestParsePublished(t *testing.T) {
	tests := []struct {
		raw      string
		wantYear int
		known    bool
	}{
		{"Feb 12, 2017", 2017, true},
		{"2020-07-04T10:00:00Z", 2020, true},
		{"2017-02-12T10:00:00.0000000Z", 2017, true},
		{"03/15/2010", 2010, true},
		{"Published sometime in 2012", 2012, true},
		{"3 days ago", 0, false},
		{"N/A", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := ParsePublished(tt.raw)
			if !tt.known {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantYear, got.Year())
		})
	}
}

func TestStubBackend_SynthesizesFromQuery(t *testing.T) {
	b := &StubBackend{PerQuery: 3}
	q := windowedQuery()

	hits, err := b.Search(context.Background(), q, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Contains(t, hits[0].Title, q.Text)
	assert.NotEqual(t, hits[0].URL, hits[1].URL)
	assert.Equal(t, "02/10/2017", hits[1].DateColumn())
	year, ok := hits[0].PublishedYear()
	require.True(t, ok)
	assert.Equal(t, 2017, year)
}
