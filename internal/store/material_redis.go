package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// ErrNotFound marks a material with no resolvable article content.
var ErrNotFound = errors.New("material content not found")

// RewriteRecord holds the fields of one rewrite result or rewrite task row.
type RewriteRecord struct {
	OriginalTitle    string `json:"original_title"`
	OriginalContent  string `json:"original_content"`
	RewrittenTitle   string `json:"rewritten_title"`
	RewrittenContent string `json:"rewritten_content"`
}

// MaterialStore persists materials and their rewrite records in redis hashes.
// It is the owning collaborator for the illustration artifact: the artifact
// lives under the material's free-form extra_data bag.
type MaterialStore struct {
	client *redis.Client
	keyNS  string
}

func NewMaterialStore(redisURL string) (*MaterialStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opt)
	if err := c.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &MaterialStore{client: c, keyNS: "material"}, nil
}

func (s *MaterialStore) materialKey(id string) string { return fmt.Sprintf("%s:%s", s.keyNS, id) }
func (s *MaterialStore) resultKey(id string) string {
	return fmt.Sprintf("rewrite_result:%s", id)
}
func (s *MaterialStore) taskKey(id string) string { return fmt.Sprintf("rewrite_task:%s", id) }

// ResolveContent returns the article title and body for a material,
// preferring the rewrite result record and falling back to the rewrite task.
// Within each record the rewritten fields win over the originals.
func (s *MaterialStore) ResolveContent(ctx context.Context, materialID string) (title, body string, err error) {
	for _, key := range []string{s.resultKey(materialID), s.taskKey(materialID)} {
		res, err := s.client.HGetAll(ctx, key).Result()
		if err != nil {
			return "", "", err
		}
		if len(res) == 0 {
			continue
		}
		title = firstNonEmpty(res["rewritten_title"], res["original_title"])
		body = firstNonEmpty(res["rewritten_content"], res["original_content"])
		if body != "" {
			return title, body, nil
		}
	}
	return "", "", ErrNotFound
}

// MergeIllustration writes the illustration artifact under extra_data
// (shallow merge of the "illustrate" sub-key, other keys preserved) and sets
// the material thumbnail when a cover exists. The merge is read-modify-write
// with last-write-wins semantics; overlapping illustration runs for the same
// material are not protected against each other.
func (s *MaterialStore) MergeIllustration(ctx context.Context, materialID string, artifact any, coverURL string) error {
	key := s.materialKey(materialID)

	extra := map[string]any{}
	if raw, err := s.client.HGet(ctx, key, "extra_data").Result(); err == nil && raw != "" {
		_ = json.Unmarshal([]byte(raw), &extra)
	}
	extra["illustrate"] = artifact

	merged, err := json.Marshal(extra)
	if err != nil {
		return fmt.Errorf("encode extra_data: %w", err)
	}

	fields := map[string]any{
		"extra_data": string(merged),
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}
	if coverURL != "" {
		fields["thumbnail"] = coverURL
	}
	return s.client.HSet(ctx, key, fields).Err()
}

// PutMaterial seeds a material row.
func (s *MaterialStore) PutMaterial(ctx context.Context, id, title, content string) error {
	return s.client.HSet(ctx, s.materialKey(id), map[string]any{
		"title":      title,
		"content":    content,
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}).Err()
}

// PutRewriteResult seeds the rewrite result record for a material.
func (s *MaterialStore) PutRewriteResult(ctx context.Context, materialID string, rec RewriteRecord) error {
	return s.client.HSet(ctx, s.resultKey(materialID), recordFields(rec)).Err()
}

// PutRewriteTask seeds the rewrite task record for a material.
func (s *MaterialStore) PutRewriteTask(ctx context.Context, materialID string, rec RewriteRecord) error {
	return s.client.HSet(ctx, s.taskKey(materialID), recordFields(rec)).Err()
}

// GetExtraData returns the material's decoded extra_data bag.
func (s *MaterialStore) GetExtraData(ctx context.Context, materialID string) (map[string]any, error) {
	raw, err := s.client.HGet(ctx, s.materialKey(materialID), "extra_data").Result()
	if err == redis.Nil {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return nil, fmt.Errorf("decode extra_data: %w", err)
		}
	}
	return out, nil
}

func (s *MaterialStore) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func (s *MaterialStore) Close() error { return s.client.Close() }

func recordFields(rec RewriteRecord) map[string]any {
	return map[string]any{
		"original_title":    rec.OriginalTitle,
		"original_content":  rec.OriginalContent,
		"rewritten_title":   rec.RewrittenTitle,
		"rewritten_content": rec.RewrittenContent,
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
