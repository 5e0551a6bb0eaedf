package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/illustrator/internal/ai"
)

// ParagraphPrompt describes one planned inline illustration. Index is the
// 0-based paragraph the image belongs after; Text is a short reader-facing
// summary of that paragraph and is never sent to the image model.
type ParagraphPrompt struct {
	Index  int    `json:"index"`
	Prompt string `json:"prompt"`
	Text   string `json:"text"`
}

// IllustrationPlan is the structured output of the planning call.
type IllustrationPlan struct {
	CoverPrompt      string            `json:"coverPrompt"`
	ParagraphPrompts []ParagraphPrompt `json:"paragraphPrompts"`
}

// MaxParagraphs bounds how many inline illustrations one article may get.
const MaxParagraphs = 6

// FallbackCoverPrompt is used when the model fails to produce a usable plan.
// Illustration is an enhancement, so planning never fails the pipeline.
const FallbackCoverPrompt = "clean photo-realistic editorial cover image for an article, centered subject, soft natural light, without text, watermark, logo, caption"

const systemPrompt = "You output ONLY valid minified JSON using standard ASCII quotes, no trailing commas. All image prompts MUST be English and concrete."

// Planner turns an article into an illustration plan via one LLM call.
type Planner struct {
	llm ai.Completer
}

func New(llm ai.Completer) *Planner {
	return &Planner{llm: llm}
}

// Plan builds the illustration plan for title+body. It degrades instead of
// failing: any model or parse error yields a plan with a generic cover prompt
// and no paragraph prompts.
func (p *Planner) Plan(ctx context.Context, title, body string) IllustrationPlan {
	raw, err := p.llm.Complete(ctx, systemPrompt, buildUserPrompt(title, body))
	if err != nil {
		log.Warn().Err(err).Msg("illustration planning call failed; using fallback plan")
		return fallbackPlan()
	}

	plan, err := parsePlan(raw)
	if err != nil {
		log.Warn().Err(err).Msg("illustration plan unparsable; using fallback plan")
		return fallbackPlan()
	}
	return plan
}

func fallbackPlan() IllustrationPlan {
	return IllustrationPlan{CoverPrompt: FallbackCoverPrompt, ParagraphPrompts: []ParagraphPrompt{}}
}

func buildUserPrompt(title, body string) string {
	var b strings.Builder
	b.WriteString("You are a senior editorial art director for a Chinese article. Produce concise, concrete ENGLISH prompts for image generation.\n\n")
	b.WriteString("Tasks:\n")
	b.WriteString("1) Based on the title and body, output one English \"cover image prompt\" (<= 35 words). It must describe a clear main subject, scene, composition and mood for a WeChat cover (horizontal 900x383, centered subject, safe margins). Prefer photo-realistic style. Avoid abstract wording. Append: \"without text, watermark, logo, caption\".\n")
	fmt.Fprintf(&b, "2) Split the body into up to %d logical paragraphs. For each paragraph, output an English \"illustration prompt\" (<= 30 words) that matches that paragraph's meaning. Each prompt should specify: main subject, setting, time/lighting, style/medium, composition cues, mood. Avoid proper names/brands. Append: \"without text, watermark, logo, caption\".\n\n", MaxParagraphs)
	b.WriteString("Return STRICT JSON only with fields { coverPrompt: string, items: Array<{ index: number, text: string, prompt: string }> } where text is a short Chinese summary (<= 40 chars) of that paragraph.\n\n")
	fmt.Fprintf(&b, "Title: %s\nBody:\n%s", title, body)
	return b.String()
}

// planReply mirrors the JSON shape the model is asked for. Item indices are
// untrusted: they may be missing, duplicated or out of range.
type planReply struct {
	CoverPrompt string `json:"coverPrompt"`
	Items       []struct {
		Index  *int   `json:"index"`
		Text   string `json:"text"`
		Prompt string `json:"prompt"`
	} `json:"items"`
}

func parsePlan(raw string) (IllustrationPlan, error) {
	cleaned := stripFences(strings.TrimSpace(raw))
	if cleaned == "" {
		return IllustrationPlan{}, fmt.Errorf("empty model reply")
	}

	var reply planReply
	if err := json.Unmarshal([]byte(cleaned), &reply); err != nil {
		return IllustrationPlan{}, fmt.Errorf("decode plan: %w", err)
	}
	if strings.TrimSpace(reply.CoverPrompt) == "" {
		reply.CoverPrompt = FallbackCoverPrompt
	}

	plan := IllustrationPlan{
		CoverPrompt:      reply.CoverPrompt,
		ParagraphPrompts: make([]ParagraphPrompt, 0, len(reply.Items)),
	}
	for i, it := range reply.Items {
		if len(plan.ParagraphPrompts) >= MaxParagraphs {
			break
		}
		if strings.TrimSpace(it.Prompt) == "" {
			continue
		}
		idx := i
		if it.Index != nil {
			idx = *it.Index
		}
		plan.ParagraphPrompts = append(plan.ParagraphPrompts, ParagraphPrompt{
			Index:  idx,
			Prompt: it.Prompt,
			Text:   it.Text,
		})
	}
	return plan, nil
}

// stripFences removes a surrounding markdown code fence, which some models
// insist on adding around JSON.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:] // drop the language tag line
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
