// Package selector picks stock media for a project: it asks the platform for
// search queries, runs them against the stock library, ranks the hits and
// attaches the best ones.
package selector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/storylinez/storylinez-go/pkg/apierr"
	"github.com/storylinez/storylinez-go/pkg/client"
	"github.com/storylinez/storylinez-go/pkg/poller"
)

// API is the subset of *client.Client the selector uses.
type API interface {
	GenerateSearchQueries(ctx context.Context, req *client.GenerateSearchRequest) (*client.JobAck, error)
	WaitForSearchQueries(ctx context.Context, projectID string, opts poller.Options) (*client.SearchQueryResults, error)
	SearchStock(ctx context.Context, req *client.StockSearchRequest) (*client.StockSearchResults, error)
	AddStockFile(ctx context.Context, projectID, stockID string, mediaType client.MediaType) (*client.StatusMessage, error)
}

// Request describes one selection run.
type Request struct {
	ProjectID string `json:"project_id" validate:"required"`
	// MediaTypes defaults to all three collections.
	MediaTypes []client.MediaType `json:"media_types,omitempty" validate:"omitempty,dive,oneof=videos audios images"`
	// QueriesPerType is how many queries the platform generates per media type.
	QueriesPerType int `json:"queries_per_type,omitempty" validate:"gte=0,lte=50"`
	// ResultsPerQuery caps the hits of each stock search.
	ResultsPerQuery int                `json:"results_per_query,omitempty" validate:"gte=0"`
	Threshold       float64            `json:"threshold" validate:"gte=0,lte=1"`
	TopN            int                `json:"top_n" validate:"gte=0"`
	Orientation     client.Orientation `json:"orientation,omitempty" validate:"omitempty,oneof=landscape portrait"`
	// Attach disables the final AddStockFile step when false.
	Attach bool `json:"attach"`
}

// Candidate is a scored stock hit.
type Candidate struct {
	StockID   string           `json:"stock_id"`
	MediaType client.MediaType `json:"media_type"`
	Query     string           `json:"query"`
	Score     float64          `json:"score"`
	Title     string           `json:"title,omitempty"`
}

// Attachment is a selected candidate and the outcome of attaching it.
type Attachment struct {
	Candidate
	Attached bool   `json:"attached"`
	Error    string `json:"error,omitempty"`
	Err      error  `json:"-"`
}

// SearchError records a failed stock search.
type SearchError struct {
	MediaType client.MediaType `json:"media_type"`
	Query     string           `json:"query"`
	Error     string           `json:"error"`
	Err       error            `json:"-"`
}

// Selection is the outcome of SelectMedia.
type Selection struct {
	Queries      client.SearchQueries              `json:"queries"`
	Selected     map[client.MediaType][]Attachment `json:"selected"`
	SearchErrors []SearchError                     `json:"search_errors,omitempty"`
}

// Failed returns the attachments that could not be attached.
func (s *Selection) Failed() []Attachment {
	var out []Attachment
	for _, mt := range client.ValidMediaTypes {
		for _, a := range s.Selected[mt] {
			if a.Err != nil {
				out = append(out, a)
			}
		}
	}
	return out
}

// Selector runs selections against one client.
type Selector struct {
	api  API
	poll poller.Options
	log  *slog.Logger
}

// Option configures a Selector.
type Option func(*Selector)

// WithPollOptions sets how query generation is awaited.
func WithPollOptions(opts poller.Options) Option {
	return func(s *Selector) { s.poll = opts }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Selector) { s.log = l }
}

// New creates a selector.
func New(api API, opts ...Option) *Selector {
	s := &Selector{api: api, poll: poller.DefaultOptions(), log: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("component", "selector")
	return s
}

// SelectMedia generates queries, searches, ranks and attaches media.
// Failed searches and failed attachments are recorded on the returned
// Selection; query generation failures and cancellation abort the run.
func (s *Selector) SelectMedia(ctx context.Context, req Request) (*Selection, error) {
	if req.ProjectID == "" {
		return nil, apierr.Validation("selector", "project_id is required")
	}
	types := req.MediaTypes
	if len(types) == 0 {
		types = client.ValidMediaTypes
	}
	perType := req.QueriesPerType
	if perType == 0 {
		perType = 3
	}

	gen := &client.GenerateSearchRequest{ProjectID: req.ProjectID}
	for _, mt := range types {
		switch mt {
		case client.MediaVideos:
			gen.NumVideos = perType
		case client.MediaAudios:
			gen.NumAudio = perType
		case client.MediaImages:
			gen.NumImages = perType
		default:
			return nil, apierr.Validation("selector", "unknown media type %q", mt)
		}
	}
	if _, err := s.api.GenerateSearchQueries(ctx, gen); err != nil {
		return nil, fmt.Errorf("generate search queries: %w", err)
	}
	results, err := s.api.WaitForSearchQueries(ctx, req.ProjectID, s.poll)
	if err != nil {
		return nil, fmt.Errorf("wait for search queries: %w", err)
	}

	sel := &Selection{Queries: results.Queries(), Selected: map[client.MediaType][]Attachment{}}
	for _, mt := range types {
		candidates, err := s.search(ctx, req, mt, sel)
		if err != nil {
			return nil, err
		}
		ranked := Rank(candidates, req.Threshold, req.TopN)
		s.log.Info("ranked stock media", "project_id", req.ProjectID, "media_type", mt,
			"candidates", len(candidates), "selected", len(ranked))

		attachments := make([]Attachment, 0, len(ranked))
		for _, c := range ranked {
			a := Attachment{Candidate: c}
			if req.Attach {
				if err := ctx.Err(); err != nil {
					return nil, apierr.Wrap(apierr.KindCanceled, "selector", err)
				}
				if _, err := s.api.AddStockFile(ctx, req.ProjectID, c.StockID, mt); err != nil {
					a.Err, a.Error = err, err.Error()
					s.log.Warn("attach stock media failed", "stock_id", c.StockID, "error", err)
				} else {
					a.Attached = true
				}
			}
			attachments = append(attachments, a)
		}
		sel.Selected[mt] = attachments
	}
	return sel, nil
}

// search runs one stock search per generated query. It stops with a
// KindCanceled error once ctx is done or a search was canceled.
func (s *Selector) search(ctx context.Context, req Request, mt client.MediaType, sel *Selection) ([]Candidate, error) {
	var out []Candidate
	for _, q := range sel.Queries.ForMediaType(mt) {
		sr := &client.StockSearchRequest{
			Queries:             []string{q},
			Collections:         []client.MediaType{mt},
			SimilarityThreshold: client.Float(req.Threshold),
		}
		if mt == client.MediaVideos {
			sr.Orientation = req.Orientation
		}
		if req.ResultsPerQuery > 0 {
			switch mt {
			case client.MediaVideos:
				sr.NumResultsVideos = req.ResultsPerQuery
			case client.MediaAudios:
				sr.NumResultsAudios = req.ResultsPerQuery
			case client.MediaImages:
				sr.NumResultsImages = req.ResultsPerQuery
			}
		}
		res, err := s.api.SearchStock(ctx, sr)
		if cerr := ctx.Err(); cerr != nil {
			return nil, apierr.Wrap(apierr.KindCanceled, "selector", cerr)
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || apierr.Is(err, apierr.KindCanceled) {
				return nil, apierr.Wrap(apierr.KindCanceled, "selector", err)
			}
			s.log.Warn("stock search failed", "media_type", mt, "query", q, "error", err)
			sel.SearchErrors = append(sel.SearchErrors, SearchError{MediaType: mt, Query: q, Error: err.Error(), Err: err})
			continue
		}
		for _, item := range res.ForMediaType(mt) {
			out = append(out, Candidate{
				StockID:   item.StockID,
				MediaType: mt,
				Query:     q,
				Score:     item.Relevance(),
				Title:     item.Title,
			})
		}
	}
	return out, nil
}

// Rank drops candidates scoring below threshold, orders the rest by
// descending score (ties keep their input order), removes repeated stock ids
// and keeps at most topN. topN <= 0 keeps everything.
func Rank(candidates []Candidate, threshold float64, topN int) []Candidate {
	kept := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Score >= threshold {
			kept = append(kept, c)
		}
	}
	slices.SortStableFunc(kept, func(a, b Candidate) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})

	seen := make(map[string]struct{}, len(kept))
	out := kept[:0]
	for _, c := range kept {
		if _, dup := seen[c.StockID]; dup {
			continue
		}
		seen[c.StockID] = struct{}{}
		out = append(out, c)
		if topN > 0 && len(out) == topN {
			break
		}
	}
	return out
}
