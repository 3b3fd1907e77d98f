package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/storylinez/storylinez-go/pkg/client"
)

// BrandSpec describes a scrape-then-extract run for one website.
type BrandSpec struct {
	WebsiteURL        string `json:"website_url" validate:"required,http_url"`
	Depth             int    `json:"depth,omitempty" validate:"gte=0,lte=5"`
	EnableJS          bool   `json:"enable_js,omitempty"`
	IncludePalette    *bool  `json:"include_palette,omitempty"`
	DynamicExtraction bool   `json:"dynamic_extraction,omitempty"`
	Deepthink         bool   `json:"deepthink,omitempty"`
	Overdrive         bool   `json:"overdrive,omitempty"`
	WebSearch         bool   `json:"web_search,omitempty"`
	Eco               bool   `json:"eco,omitempty"`
}

// BrandResult combines the scraped site with the extracted brand settings.
type BrandResult struct {
	ScrapeJobID     string          `json:"scrape_job_id"`
	BrandJobID      string          `json:"brand_job_id,omitempty"`
	WebScraping     json.RawMessage `json:"web_scraping,omitempty"`
	BrandExtraction json.RawMessage `json:"brand_extraction,omitempty"`
	FinishedAt      time.Time       `json:"finished_at"`
}

// ExtractBrand scrapes spec.WebsiteURL, then feeds the scraped content into
// a brand extraction job. Each job is waited for with the orchestrator's
// poll options. On failure the partial result carries the ids of the jobs
// that were started.
func (o *Orchestrator) ExtractBrand(ctx context.Context, spec BrandSpec) (*BrandResult, error) {
	if err := client.ValidateStruct("pipeline.brand", &spec); err != nil {
		return nil, err
	}
	ctx, span := o.tracer.Start(ctx, "pipeline.brand_extraction")
	defer span.End()
	span.SetAttributes(attribute.String("storylinez.website_url", spec.WebsiteURL))

	res, err := o.extractBrand(ctx, spec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	span.SetStatus(codes.Ok, "")
	return res, nil
}

func (o *Orchestrator) extractBrand(ctx context.Context, spec BrandSpec) (*BrandResult, error) {
	log := o.log.With("website_url", spec.WebsiteURL)
	res := &BrandResult{}
	poll := o.pollOptions("web-scraping")

	var scrape *client.JobAck
	err := o.retry(ctx, func(ctx context.Context) error {
		var err error
		scrape, err = o.c.StartWebScraping(ctx, &client.WebScrapingRequest{
			WebsiteURL: spec.WebsiteURL,
			Timeout:    int(poll.Timeout / time.Second),
			Depth:      spec.Depth,
			EnableJS:   spec.EnableJS,
			Deepthink:  spec.Deepthink,
			Overdrive:  spec.Overdrive,
			WebSearch:  spec.WebSearch,
			Eco:        spec.Eco,
		})
		return err
	})
	if err != nil {
		return res, fmt.Errorf("web scraping: %w", err)
	}
	res.ScrapeJobID = scrape.JobID
	log.InfoContext(ctx, "web scraping started", "job_id", scrape.JobID)

	scraped, err := o.c.WaitForJobResult(ctx, scrape.JobID, poll)
	if err != nil {
		return res, fmt.Errorf("web scraping: %w", err)
	}
	res.WebScraping = scraped.Result

	includePalette := true
	if spec.IncludePalette != nil {
		includePalette = *spec.IncludePalette
	}
	var brand *client.JobAck
	err = o.retry(ctx, func(ctx context.Context) error {
		var err error
		brand, err = o.c.StartBrandExtraction(ctx, &client.BrandExtractionRequest{
			WebsiteURL:        spec.WebsiteURL,
			ScrapedData:       scraped.Result,
			IncludePalette:    includePalette,
			DynamicExtraction: spec.DynamicExtraction,
			Deepthink:         spec.Deepthink,
			Overdrive:         spec.Overdrive,
			WebSearch:         spec.WebSearch,
			Eco:               spec.Eco,
		})
		return err
	})
	if err != nil {
		return res, fmt.Errorf("brand extraction: %w", err)
	}
	res.BrandJobID = brand.JobID
	log.InfoContext(ctx, "brand extraction started", "job_id", brand.JobID)

	extracted, err := o.c.WaitForJobResult(ctx, brand.JobID, o.pollOptions("brand-extraction"))
	if err != nil {
		return res, fmt.Errorf("brand extraction: %w", err)
	}
	res.BrandExtraction = extracted.Result
	res.FinishedAt = time.Now().UTC()
	log.InfoContext(ctx, "brand extraction completed")
	return res, nil
}
