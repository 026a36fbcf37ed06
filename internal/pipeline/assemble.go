package pipeline

import (
	"context"
	"strings"

	"github.com/thinkscotty/podcaster/internal/durable"
)

// assemble concatenates the checkpointed utterance audio in index order and
// stores the episode. It returns "" without error when no renderer is
// configured, there is no audio, or rendering fails.
func (r *run) assemble(ctx context.Context, utteranceCount int) (string, error) {
	urls, err := r.loadAudioURLs(ctx, utteranceCount)
	if err != nil {
		return "", err
	}

	if r.env.Renderer == nil {
		r.logger.Info("Audio renderer not configured, skipping assembly", "segments", len(urls))
		return "", nil
	}
	if len(urls) == 0 {
		r.logger.Warn("No audio segments to assemble")
		return "", nil
	}

	podcastKey := FinalAudioKey(r.rc, r.settings.Name)
	// Keyed by the segment list: a different set of segments is a different episode.
	step := "concat save " + digest(strings.Join(urls, "\n"))
	key, err := durable.Do(ctx, r.steps, step, r.settings.Policy, func(ctx context.Context) (string, error) {
		audio, err := r.env.Renderer.Concat(ctx, urls)
		if err != nil {
			return "", err
		}
		if err := r.env.Blobs.Put(ctx, podcastKey, audio); err != nil {
			return "", err
		}
		return podcastKey, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		r.logger.Warn("Audio assembly failed, recording text only", "error", err)
		return "", nil
	}

	r.logger.Info("Episode audio stored", "key", key, "segments", len(urls))
	return key, nil
}

// loadAudioURLs reads the per-utterance audio checkpoints on every attempt,
// skipping utterances that never produced audio.
func (r *run) loadAudioURLs(ctx context.Context, utteranceCount int) ([]string, error) {
	urls := make([]string, 0, utteranceCount)
	for i := range utteranceCount {
		url, ok, err := r.env.Checkpoints.Get(ctx, audioCheckpointKey(r.rc.RunID, r.variant, i))
		if err != nil {
			return nil, err
		}
		if ok {
			urls = append(urls, url)
		}
	}
	return urls, nil
}
