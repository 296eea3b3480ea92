package generator

import (
	"context"
	"fmt"

	"github.com/deusflow/trendpress/internal/domain"
	"github.com/deusflow/trendpress/internal/extract"
	"github.com/deusflow/trendpress/internal/gemini"
)

const DefaultMockTarget = "https://www.example.com"

// PipelineReport summarizes one manual pipeline run.
type PipelineReport struct {
	Targets int     `json:"targets"`
	Saved   []int64 `json:"saved"`
	Failed  int     `json:"failed"`
}

type target struct {
	url  string
	name string
}

// RunPipeline crawls url (or every active source when url is empty), writes one draft per
// page and notifies the owner. mock swaps in the deterministic generator and a canned page.
func (o *Orchestrator) RunPipeline(ctx context.Context, url string, mock bool, mockTarget string) (*PipelineReport, error) {
	if mockTarget == "" {
		mockTarget = DefaultMockTarget
	}
	gen := o.gen
	if mock {
		gen = gemini.Dummy{}
	}

	targets, err := o.pipelineTargets(ctx, url, mock, mockTarget)
	if err != nil {
		return nil, err
	}

	report := &PipelineReport{Targets: len(targets), Saved: []int64{}}
	if len(targets) == 0 {
		o.logger.Info("no active sources found")
		return report, nil
	}

	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		o.logger.Info("processing source", "url", t.url, "name", t.name)

		page, err := o.pipelinePage(ctx, t, mock, mockTarget)
		if err != nil || page.Content == "" {
			o.logger.Warn("failed to crawl or empty content", "url", t.url, "error", err)
			report.Failed++
			continue
		}

		raw, err := gen.GenerateText(ctx, sourcePrompt(o.persona, page.Title, page.Content))
		content := extract.TrimFence(raw)
		if err != nil || content == "" {
			o.logger.Error("failed to generate article content", "url", t.url, "error", err)
			report.Failed++
			continue
		}

		thumb := page.ThumbnailURL
		if thumb == "" {
			thumb = o.placeholder
		}
		saved, err := o.save(ctx, domain.Article{
			Title:        fmt.Sprintf("【美咲のトレンドcheck】%s", page.Title),
			Content:      content,
			SourceURL:    t.url,
			ThumbnailURL: thumb,
			GeneratedBy:  domain.GeneratedByPipeline,
		})
		if err != nil {
			o.logger.Error("failed to save draft", "url", t.url, "error", err)
			report.Failed++
			continue
		}
		report.Saved = append(report.Saved, saved.ID)
	}
	return report, nil
}

func (o *Orchestrator) pipelineTargets(ctx context.Context, url string, mock bool, mockTarget string) ([]target, error) {
	if url != "" {
		return []target{{url: url, name: "Manual Input"}}, nil
	}
	mockTargets := []target{{url: mockTarget, name: "Mock Source"}}

	if o.store == nil {
		if mock {
			return mockTargets, nil
		}
		return nil, fmt.Errorf("no source URL provided and store not available")
	}

	sources, err := o.store.ActiveSources(ctx)
	if err != nil {
		if mock {
			o.logger.Warn("failed to fetch sources, using mock targets", "error", err)
			return mockTargets, nil
		}
		return nil, fmt.Errorf("failed to load sources: %w", err)
	}
	if len(sources) == 0 && mock {
		return mockTargets, nil
	}

	out := make([]target, 0, len(sources))
	for _, s := range sources {
		out = append(out, target{url: s.URL, name: s.Name})
	}
	return out, nil
}

func (o *Orchestrator) pipelinePage(ctx context.Context, t target, mock bool, mockTarget string) (*domain.PageContent, error) {
	if mock && t.url == mockTarget {
		return &domain.PageContent{
			Title:     "Mock Article Title",
			Content:   "This is mock content found on the page.",
			SourceURL: t.url,
		}, nil
	}
	if o.fetcher == nil {
		return nil, fmt.Errorf("fetcher not available")
	}
	return o.fetcher.Fetch(ctx, t.url)
}
