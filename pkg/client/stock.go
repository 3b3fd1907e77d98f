package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/storylinez/storylinez-go/pkg/apierr"
)

// MaxStockBatch is the largest number of ids GetStockByIDs accepts.
const MaxStockBatch = 100

// StockItem is one stock media entry.
type StockItem struct {
	StockID          string         `json:"stock_id"`
	MediaType        MediaType      `json:"media_type,omitempty"`
	Title            string         `json:"title,omitempty"`
	Description      string         `json:"description,omitempty"`
	Duration         float64        `json:"duration,omitempty"`
	Orientation      Orientation    `json:"orientation,omitempty"`
	VectorSimilarity *float64       `json:"vector_similarity,omitempty"`
	Similarity       *float64       `json:"similarity,omitempty"`
	Score            *float64       `json:"score,omitempty"`
	ThumbnailURL     string         `json:"thumbnail_url,omitempty"`
	StreamableURL    string         `json:"streamable_url,omitempty"`
	DownloadURL      string         `json:"download_url,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// Relevance is the best available score for the item, or 0 when the platform sent none.
func (s StockItem) Relevance() float64 {
	for _, v := range []*float64{s.VectorSimilarity, s.Similarity, s.Score} {
		if v != nil {
			return *v
		}
	}
	return 0
}

// StockSearchRequest drives POST /stock/search.
type StockSearchRequest struct {
	Queries             []string    `json:"queries" validate:"required,min=1,dive,required"`
	Collections         []MediaType `json:"-" validate:"omitempty,dive,oneof=videos audios images"`
	NumResults          int         `json:"-" validate:"gte=0"`
	NumResultsVideos    int         `json:"-" validate:"gte=0"`
	NumResultsAudios    int         `json:"-" validate:"gte=0"`
	NumResultsImages    int         `json:"-" validate:"gte=0"`
	SimilarityThreshold *float64    `json:"-" validate:"omitempty,gte=0,lte=1"`
	Orientation         Orientation `json:"-" validate:"omitempty,oneof=landscape portrait"`
	Detailed            bool        `json:"-"`
	Links               bool        `json:"-"`
}

// StockSearchResults are the hits grouped by collection.
type StockSearchResults struct {
	Videos []StockItem `json:"videos,omitempty"`
	Audios []StockItem `json:"audios,omitempty"`
	Images []StockItem `json:"images,omitempty"`
}

// ForMediaType returns the hits of one collection.
func (r *StockSearchResults) ForMediaType(mt MediaType) []StockItem {
	switch mt {
	case MediaVideos:
		return r.Videos
	case MediaAudios:
		return r.Audios
	case MediaImages:
		return r.Images
	}
	return nil
}

// StockListOptions filters GET /stock/list.
type StockListOptions struct {
	MediaType   MediaType `validate:"required,oneof=videos audios images"`
	Page        int       `validate:"gte=0"`
	Limit       int       `validate:"gte=0"`
	SortBy      string
	SortOrder   string      `validate:"omitempty,oneof=asc desc"`
	Orientation Orientation `validate:"omitempty,oneof=landscape portrait"`
	Search      string
}

// StockList is a page of stock items.
type StockList struct {
	Items      []StockItem `json:"items"`
	Total      int         `json:"total,omitempty"`
	Page       int         `json:"page,omitempty"`
	TotalPages int         `json:"total_pages,omitempty"`
}

// SearchStock runs a semantic search over the stock library.
func (c *Client) SearchStock(ctx context.Context, req *StockSearchRequest) (*StockSearchResults, error) {
	const op = "stock.search"
	if err := c.check(op, req); err != nil {
		return nil, err
	}
	q := linkParams(req.Detailed, req.Links)
	for _, col := range req.Collections {
		q.Add("collections", string(col))
	}
	if req.NumResults > 0 {
		q.Set("num_results", strconv.Itoa(req.NumResults))
	}
	for name, n := range map[string]int{
		"num_results_videos": req.NumResultsVideos,
		"num_results_audios": req.NumResultsAudios,
		"num_results_images": req.NumResultsImages,
	} {
		if n > 0 {
			q.Set(name, strconv.Itoa(n))
		}
	}
	if req.SimilarityThreshold != nil {
		q.Set("similarity_threshold", strconv.FormatFloat(*req.SimilarityThreshold, 'f', -1, 64))
	}
	if req.Orientation != "" {
		q.Set("orientation", string(req.Orientation))
	}
	var result StockSearchResults
	if err := c.post(ctx, "/stock/search", q, map[string][]string{"queries": req.Queries}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetStockByID fetches one stock item.
func (c *Client) GetStockByID(ctx context.Context, stockID string, mediaType MediaType) (*StockItem, error) {
	const op = "stock.get"
	body := stockFileBody{StockID: stockID, MediaType: mediaType}
	if err := c.check(op, &body); err != nil {
		return nil, err
	}
	q := linkParams(true, true)
	q.Set("id", stockID)
	q.Set("media_type", string(mediaType))
	var result StockItem
	if err := c.get(ctx, "/stock/get_by_id", q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetStockByIDs fetches up to MaxStockBatch items; ids and mediaTypes pair up by index.
func (c *Client) GetStockByIDs(ctx context.Context, ids []string, mediaTypes []MediaType) ([]StockItem, error) {
	const op = "stock.get_many"
	switch {
	case len(ids) == 0:
		return nil, apierr.Validation(op, "ids must not be empty")
	case len(ids) != len(mediaTypes):
		return nil, apierr.Validation(op, "ids and media_types must be the same length (%d != %d)", len(ids), len(mediaTypes))
	case len(ids) > MaxStockBatch:
		return nil, apierr.Validation(op, "cannot request more than %d items at once, got %d", MaxStockBatch, len(ids))
	}
	types := make([]string, len(mediaTypes))
	for i, mt := range mediaTypes {
		body := stockFileBody{StockID: ids[i], MediaType: mt}
		if err := c.check(op, &body); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		types[i] = string(mt)
	}
	body := map[string][]string{"ids": ids, "media_types": types}
	var result struct {
		Items []StockItem `json:"items"`
	}
	if err := c.post(ctx, "/stock/get_by_ids", linkParams(true, false), body, &result); err != nil {
		return nil, err
	}
	return result.Items, nil
}

// ListStock pages through one stock collection. Limit is capped at 100.
func (c *Client) ListStock(ctx context.Context, opts StockListOptions) (*StockList, error) {
	const op = "stock.list"
	if err := c.check(op, &opts); err != nil {
		return nil, err
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	opts.Limit = min(opts.Limit, MaxStockBatch)
	if opts.Page <= 0 {
		opts.Page = 1
	}
	q := linkParams(true, false)
	q.Set("media_type", string(opts.MediaType))
	q.Set("page", strconv.Itoa(opts.Page))
	q.Set("limit", strconv.Itoa(opts.Limit))
	if opts.SortBy != "" {
		q.Set("sort_by", opts.SortBy)
	}
	if opts.SortOrder != "" {
		q.Set("sort_order", opts.SortOrder)
	}
	if opts.Orientation != "" {
		q.Set("orientation", string(opts.Orientation))
	}
	if opts.Search != "" {
		q.Set("search", opts.Search)
	}
	var result StockList
	if err := c.get(ctx, "/stock/list", q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func linkParams(detailed, links bool) url.Values {
	return url.Values{
		"detailed":            {boolParam(detailed)},
		"generate_thumbnail":  {boolParam(links)},
		"generate_streamable": {boolParam(links)},
		"generate_download":   {boolParam(links)},
	}
}
