package client

import (
	"context"
	"strconv"

	"github.com/storylinez/storylinez-go/pkg/apierr"
)

// FileSearchRequest is a semantic search over the organization's own media.
type FileSearchRequest struct {
	Query       string   `json:"query" validate:"required"`
	MediaTypes  []string `json:"media_types,omitempty" validate:"omitempty,dive,oneof=video audio image"`
	MediaSource string   `json:"-" validate:"omitempty,oneof=user stock"`
	FolderPath  string   `json:"-"`
	OrgID       string   `json:"-"`
	Page        int      `json:"-" validate:"gte=0"`
	PageSize    int      `json:"-" validate:"gte=0,lte=100"`
	Links       bool     `json:"-"`
}

// FileHit is one search result.
type FileHit struct {
	FileID           string         `json:"file_id,omitempty"`
	StockID          string         `json:"stock_id,omitempty"`
	Filename         string         `json:"filename,omitempty"`
	MediaType        string         `json:"media_type,omitempty"`
	Path             string         `json:"path,omitempty"`
	VectorSimilarity float64        `json:"vector_similarity,omitempty"`
	ThumbnailURL     string         `json:"thumbnail_url,omitempty"`
	StreamableURL    string         `json:"streamable_url,omitempty"`
	Analysis         map[string]any `json:"analysis,omitempty"`
}

// FileSearchResults is a page of hits.
type FileSearchResults struct {
	Results    []FileHit `json:"results"`
	Total      int       `json:"total,omitempty"`
	Page       int       `json:"page,omitempty"`
	TotalPages int       `json:"total_pages,omitempty"`
}

// SearchFiles searches uploaded media across video, audio and image files.
func (c *Client) SearchFiles(ctx context.Context, req *FileSearchRequest) (*FileSearchResults, error) {
	const op = "search.files"
	if err := c.check(op, req); err != nil {
		return nil, err
	}
	source := req.MediaSource
	if source == "" {
		source = "user"
	}
	q := linkParams(false, req.Links)
	delete(q, "detailed")
	q.Set("media_source", source)
	if source == "user" {
		org, err := c.orgID(op, req.OrgID)
		if err != nil {
			return nil, err
		}
		q.Set("org_id", org)
	} else if req.OrgID != "" {
		return nil, apierr.Validation(op, "org_id only applies to user media")
	}
	if req.FolderPath != "" {
		q.Set("folder_path", req.FolderPath)
	}
	q.Set("page", strconv.Itoa(max(req.Page, 1)))
	pageSize := req.PageSize
	if pageSize == 0 {
		pageSize = 20
	}
	q.Set("page_size", strconv.Itoa(pageSize))
	var result FileSearchResults
	if err := c.post(ctx, "/search/files/combined", q, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
