package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/illustrator/internal/imagegen"
	"github.com/local/illustrator/internal/markdown"
	"github.com/local/illustrator/internal/metrics"
	"github.com/local/illustrator/internal/planner"
)

const falProvider = "fal"

var errProviderCoolingDown = errors.New("image provider cooling down")

// CoverSize records the cover dimensions the artifact was generated with.
type CoverSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Illustration is the persisted end artifact of one illustration run. An
// empty Cover means no cover image could be generated.
type Illustration struct {
	Cover             string                   `json:"cover,omitempty"`
	CoverSize         CoverSize                `json:"coverSize"`
	Images            []markdown.Image         `json:"images"`
	Plan              planner.IllustrationPlan `json:"plan"`
	ContentWithImages string                   `json:"contentWithImages"`
}

// Illustrate runs the full pipeline for one material: resolve content, plan,
// generate cover and paragraph images, interleave, rehost, persist.
//
// Only input and content-not-found failures surface as errors. Every other
// stage degrades: failed images are skipped, a failed rehost keeps ephemeral
// URLs, and a failed persist still returns the computed artifact so the
// generation work is not wasted.
func (o *Orchestrator) Illustrate(ctx context.Context, materialID string) (*Illustration, error) {
	runID := uuid.NewString()
	lg := log.With().Str("run_id", runID).Str("material_id", materialID).Logger()

	title, body, err := o.deps.Store.ResolveContent(ctx, materialID)
	if err != nil {
		metrics.IncRun("not_found")
		return nil, err
	}
	lg.Info().Int("body_len", len(body)).Msg("illustration run started")

	plan := o.deps.Planner.Plan(ctx, title, body)
	if len(plan.ParagraphPrompts) == 0 {
		metrics.IncPlan("degraded")
	} else {
		metrics.IncPlan("ok")
	}

	images := []markdown.Image{}

	coverURL, err := o.generate(ctx, plan.CoverPrompt, imagegen.Options{
		Width:  o.deps.CoverWidth,
		Height: o.deps.CoverHeight,
	})
	if err != nil {
		lg.Warn().Err(err).Msg("cover generation failed; continuing without cover")
		metrics.IncImage("cover", "failed")
		coverURL = ""
	} else {
		images = append(images, markdown.Image{Index: markdown.CoverIndex, URL: coverURL})
		metrics.IncImage("cover", "ok")
	}

	// Paragraph images run strictly in plan order, one at a time. The
	// provider rate limits aggressively and placement must not depend on
	// completion order.
	for _, item := range plan.ParagraphPrompts {
		url, err := o.generate(ctx, item.Prompt, imagegen.Options{})
		if err != nil {
			lg.Warn().Err(err).Int("index", item.Index).Msg("paragraph image failed; slot skipped")
			metrics.IncImage("paragraph", "failed")
			continue
		}
		images = append(images, markdown.Image{Index: item.Index, URL: url})
		metrics.IncImage("paragraph", "ok")
	}

	paragraphs := make([]markdown.Paragraph, 0, len(plan.ParagraphPrompts))
	for _, p := range plan.ParagraphPrompts {
		paragraphs = append(paragraphs, markdown.Paragraph{Index: p.Index, Text: p.Text})
	}
	md := markdown.Interleave(body, images, paragraphs)

	// Rehost everything the document references plus the cover; swap in
	// stable URLs where rehosting succeeded.
	urls := markdown.ImageURLs(md)
	if coverURL != "" {
		urls = append(urls, coverURL)
	}
	if len(urls) > 0 {
		res := o.deps.Rehost.Rehost(ctx, urls)
		metrics.IncRehost("ok", len(res.Mapping))
		metrics.IncRehost("failed", len(res.Failed))
		md = markdown.ReplaceURLs(md, res.Mapping)
		for i := range images {
			if stable, ok := res.Mapping[images[i].URL]; ok {
				images[i].URL = stable
			}
		}
		if stable, ok := res.Mapping[coverURL]; ok {
			coverURL = stable
		}
	}

	art := &Illustration{
		Cover:             coverURL,
		CoverSize:         CoverSize{Width: o.deps.CoverWidth, Height: o.deps.CoverHeight},
		Images:            images,
		Plan:              plan,
		ContentWithImages: md,
	}

	if err := o.deps.Store.MergeIllustration(ctx, materialID, art, coverURL); err != nil {
		// the expensive generation work is already done; report the artifact
		// anyway and leave persistence failure in the logs
		lg.Warn().Err(err).Msg("persisting illustration failed")
		metrics.IncRun("persist_failed")
	} else {
		metrics.IncRun("ok")
	}

	lg.Info().
		Int("images", len(images)).
		Bool("cover", coverURL != "").
		Int("paragraphs", len(plan.ParagraphPrompts)).
		Msg("illustration run done")
	return art, nil
}

// generate wraps one image-generation unit with the provider breaker and
// latency metrics. Only a provider rate limit trips the breaker: any other
// failure is local to its own slot and must not shadow the remaining units.
func (o *Orchestrator) generate(ctx context.Context, prompt string, opts imagegen.Options) (string, error) {
	if o.deps.Breaker != nil && o.deps.Breaker.IsOpen(ctx, falProvider) {
		return "", errProviderCoolingDown
	}
	start := time.Now()
	url, err := o.deps.Images.Generate(ctx, prompt, opts)
	metrics.ObserveProvider(falProvider, time.Since(start))
	if o.deps.Breaker != nil {
		switch {
		case err == nil:
			o.deps.Breaker.Close(ctx, falProvider)
		case errors.Is(err, imagegen.ErrRateLimited):
			o.deps.Breaker.Open(ctx, falProvider)
		}
	}
	return url, err
}
