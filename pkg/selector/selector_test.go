package selector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storylinez/storylinez-go/pkg/apierr"
	"github.com/storylinez/storylinez-go/pkg/client"
	"github.com/storylinez/storylinez-go/pkg/poller"
)

func scored(id string, score float64) Candidate {
	return Candidate{StockID: id, MediaType: client.MediaVideos, Score: score}
}

func scores(cs []Candidate) []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = c.Score
	}
	return out
}

func TestRank_ThresholdAndTopN(t *testing.T) {
	in := []Candidate{scored("a", 0.9), scored("b", 0.4), scored("c", 0.95), scored("d", 0.4)}

	got := Rank(in, 0.5, 2)

	assert.Equal(t, []float64{0.95, 0.9}, scores(got))
	assert.Equal(t, "c", got[0].StockID)
	assert.Equal(t, "a", got[1].StockID)
}

func TestRank_StableOnTies(t *testing.T) {
	in := []Candidate{scored("first", 0.7), scored("second", 0.7), scored("third", 0.8)}

	got := Rank(in, 0, 0)

	require.Len(t, got, 3)
	assert.Equal(t, []string{"third", "first", "second"}, []string{got[0].StockID, got[1].StockID, got[2].StockID})
}

func TestRank_DeduplicatesKeepingBest(t *testing.T) {
	in := []Candidate{scored("x", 0.6), scored("y", 0.7), scored("x", 0.9)}

	got := Rank(in, 0.5, 5)

	require.Len(t, got, 2)
	assert.Equal(t, "x", got[0].StockID)
	assert.Equal(t, 0.9, got[0].Score)
	assert.Equal(t, "y", got[1].StockID)
}

func TestRank_ThresholdIsInclusive(t *testing.T) {
	got := Rank([]Candidate{scored("a", 0.5), scored("b", 0.49)}, 0.5, 0)
	assert.Equal(t, []float64{0.5}, scores(got))
	assert.Empty(t, Rank(nil, 0, 3))
}

type fakeAPI struct {
	mu        sync.Mutex
	queries   client.SearchQueries
	genErr    error
	hits      map[string][]client.StockItem
	searchErr map[string]error
	attachErr map[string]error
	generated *client.GenerateSearchRequest
	searches  []string
	attached  []string
	onSearch  func()
}

func (f *fakeAPI) GenerateSearchQueries(_ context.Context, req *client.GenerateSearchRequest) (*client.JobAck, error) {
	f.generated = req
	if f.genErr != nil {
		return nil, f.genErr
	}
	return &client.JobAck{JobID: "qg-1"}, nil
}

func (f *fakeAPI) WaitForSearchQueries(context.Context, string, poller.Options) (*client.SearchQueryResults, error) {
	res := &client.SearchQueryResults{Status: "COMPLETED"}
	res.Result.Results = f.queries
	return res, nil
}

func (f *fakeAPI) SearchStock(_ context.Context, req *client.StockSearchRequest) (*client.StockSearchResults, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := req.Queries[0]
	f.searches = append(f.searches, q)
	if f.onSearch != nil {
		f.onSearch()
	}
	if err := f.searchErr[q]; err != nil {
		return nil, err
	}
	out := &client.StockSearchResults{}
	switch req.Collections[0] {
	case client.MediaVideos:
		out.Videos = f.hits[q]
	case client.MediaAudios:
		out.Audios = f.hits[q]
	case client.MediaImages:
		out.Images = f.hits[q]
	}
	return out, nil
}

func (f *fakeAPI) AddStockFile(_ context.Context, _, stockID string, _ client.MediaType) (*client.StatusMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.attachErr[stockID]; err != nil {
		return nil, err
	}
	f.attached = append(f.attached, stockID)
	return &client.StatusMessage{Success: true}, nil
}

func item(id string, score float64) client.StockItem {
	return client.StockItem{StockID: id, VectorSimilarity: client.Float(score)}
}

func TestSelectMedia_RanksAndAttaches(t *testing.T) {
	api := &fakeAPI{
		queries: client.SearchQueries{Videos: []string{"sunrise", "city"}, Audio: []string{"calm piano"}},
		hits: map[string][]client.StockItem{
			"sunrise":    {item("v1", 0.9), item("v2", 0.4)},
			"city":       {item("v3", 0.95), item("v1", 0.6)},
			"calm piano": {item("a1", 0.7)},
		},
		attachErr: map[string]error{"a1": apierr.New(apierr.KindNotFound, "add", "stock item gone")},
	}
	s := New(api)

	sel, err := s.SelectMedia(context.Background(), Request{
		ProjectID:  "p1",
		MediaTypes: []client.MediaType{client.MediaVideos, client.MediaAudios},
		Threshold:  0.5,
		TopN:       2,
		Attach:     true,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, api.generated.NumVideos)
	assert.Equal(t, 3, api.generated.NumAudio)
	assert.Zero(t, api.generated.NumImages)

	videos := sel.Selected[client.MediaVideos]
	require.Len(t, videos, 2)
	assert.Equal(t, "v3", videos[0].StockID)
	assert.Equal(t, "v1", videos[1].StockID)
	assert.Equal(t, 0.9, videos[1].Score)
	assert.True(t, videos[0].Attached)

	audios := sel.Selected[client.MediaAudios]
	require.Len(t, audios, 1)
	assert.False(t, audios[0].Attached)
	assert.Equal(t, "stock item gone", apierr.MessageOf(audios[0].Err))

	assert.ElementsMatch(t, []string{"v3", "v1"}, api.attached)
	require.Len(t, sel.Failed(), 1)
}

func TestSelectMedia_SearchFailureDoesNotAbort(t *testing.T) {
	api := &fakeAPI{
		queries:   client.SearchQueries{Images: []string{"logo", "office"}},
		hits:      map[string][]client.StockItem{"office": {item("i1", 0.8)}},
		searchErr: map[string]error{"logo": apierr.New(apierr.KindServer, "search", "index offline")},
	}

	sel, err := New(api).SelectMedia(context.Background(), Request{
		ProjectID:  "p1",
		MediaTypes: []client.MediaType{client.MediaImages},
		TopN:       1,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"logo", "office"}, api.searches)
	require.Len(t, sel.SearchErrors, 1)
	assert.Equal(t, "logo", sel.SearchErrors[0].Query)
	require.Len(t, sel.Selected[client.MediaImages], 1)
	assert.Empty(t, api.attached, "attach disabled")
}

func TestSelectMedia_GenerationFailureAborts(t *testing.T) {
	api := &fakeAPI{genErr: apierr.New(apierr.KindAuth, "generate", "bad key")}

	_, err := New(api).SelectMedia(context.Background(), Request{ProjectID: "p1"})
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.KindAuth))
	assert.Empty(t, api.searches)
}

func TestSelectMedia_RequiresProject(t *testing.T) {
	_, err := New(&fakeAPI{}).SelectMedia(context.Background(), Request{})
	assert.True(t, apierr.Is(err, apierr.KindValidation))
	assert.False(t, errors.Is(err, context.Canceled))
}

func TestSelectMedia_CanceledSearchAborts(t *testing.T) {
	api := &fakeAPI{
		queries: client.SearchQueries{Videos: []string{"sunrise", "city"}},
		hits:    map[string][]client.StockItem{"city": {item("v1", 0.9)}},
		searchErr: map[string]error{
			"sunrise": apierr.Wrap(apierr.KindCanceled, "POST /stock/search", context.Canceled),
		},
	}

	sel, err := New(api).SelectMedia(context.Background(), Request{
		ProjectID:  "p1",
		MediaTypes: []client.MediaType{client.MediaVideos},
		Attach:     true,
	})
	require.Error(t, err)
	assert.Nil(t, sel)
	assert.True(t, apierr.Is(err, apierr.KindCanceled))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"sunrise"}, api.searches)
	assert.Empty(t, api.attached)
}

func TestSelectMedia_ContextCanceledMidSearch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := &fakeAPI{
		queries: client.SearchQueries{Videos: []string{"sunrise"}, Audio: []string{"calm piano"}},
		hits: map[string][]client.StockItem{
			"sunrise":    {item("v1", 0.9)},
			"calm piano": {item("a1", 0.9)},
		},
		onSearch: cancel,
	}

	_, err := New(api).SelectMedia(ctx, Request{
		ProjectID:  "p1",
		MediaTypes: []client.MediaType{client.MediaVideos, client.MediaAudios},
		Attach:     true,
	})
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.KindCanceled))
	assert.Equal(t, []string{"sunrise"}, api.searches)
	assert.Empty(t, api.attached)
}

func TestSelectMedia_DeadlineExceeded(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	api := &fakeAPI{
		queries: client.SearchQueries{Images: []string{"logo"}},
		hits:    map[string][]client.StockItem{"logo": {item("i1", 0.8)}},
	}

	_, err := New(api).SelectMedia(ctx, Request{ProjectID: "p1", MediaTypes: []client.MediaType{client.MediaImages}, Attach: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, api.attached)
}
