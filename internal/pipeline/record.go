package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/thinkscotty/podcaster/internal/durable"
	"github.com/thinkscotty/podcaster/internal/models"
)

// record writes the run bundle. It always runs, even when a previous attempt
// of the same run already wrote one, so retries overwrite with fresh values.
func (r *run) record(ctx context.Context, stories []models.FilteredStory, texts Texts, finalKey string, utterances, segments int) (*models.RunBundle, error) {
	bundle := &models.RunBundle{
		RunID:         r.rc.RunID,
		Date:          r.rc.RunDate,
		Title:         fmt.Sprintf("%s %s", r.settings.Title, r.rc.RunDate),
		Stories:       stories,
		PodcastScript: texts.Podcast,
		BlogPost:      texts.Blog,
		IntroText:     texts.Intro,
		FinalAudioKey: finalKey,
		Utterances:    utterances,
		AudioSegments: segments,
		CompletedAt:   r.now().UTC(),
	}
	key := RecordKey(r.rc.Environment, r.settings.Name, r.rc.RunDate)

	_, err := durable.Retry(ctx, r.steps, "save meta", r.settings.Policy, func(ctx context.Context) (string, error) {
		data, err := json.Marshal(bundle)
		if err != nil {
			return "", durable.Permanent(fmt.Errorf("encode bundle: %w", err))
		}
		return key, r.env.Checkpoints.Put(ctx, key, string(data), 0)
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("Run recorded", "key", key)
	return bundle, nil
}

// BundleReader is the read side of the run record store.
type BundleReader interface {
	Get(ctx context.Context, key string) (string, bool, error)
}

// LoadBundle returns the recorded bundle for a date, or ok=false if none exists.
func LoadBundle(ctx context.Context, store BundleReader, environment, pipelineName, date string) (*models.RunBundle, bool, error) {
	raw, ok, err := store.Get(ctx, RecordKey(environment, pipelineName, date))
	if err != nil || !ok {
		return nil, false, err
	}
	bundle, err := DecodeBundle(raw)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", date, err)
	}
	return bundle, true, nil
}

// DecodeBundle parses a stored run record.
func DecodeBundle(raw string) (*models.RunBundle, error) {
	var bundle models.RunBundle
	if err := json.Unmarshal([]byte(raw), &bundle); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	return &bundle, nil
}
