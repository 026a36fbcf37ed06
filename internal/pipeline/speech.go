package pipeline

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/thinkscotty/podcaster/internal/durable"
	"github.com/thinkscotty/podcaster/internal/models"
	"github.com/thinkscotty/podcaster/internal/speech"
)

// speak synthesizes every utterance of the script. Each utterance is its own
// durable step with the speech timeout; one that exhausts its retries is
// logged and left out of assembly. Artifacts come back in index order.
func (r *run) speak(ctx context.Context, script string) ([]models.Utterance, []models.AudioArtifact, error) {
	utterances := slices.Collect(r.settings.Voicer.Utterances(script))
	podcastKey := FinalAudioKey(r.rc, r.settings.Name)
	policy := r.settings.Policy.WithTimeout(r.settings.SpeechTimeout)

	results := make([]*models.AudioArtifact, len(utterances))
	sem := make(chan struct{}, r.settings.SpeechConcurrency)
	var wg sync.WaitGroup

	for i, u := range utterances {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(i int, u models.Utterance) {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					r.logger.Error("Speech synthesis panicked", "index", u.Index, "panic", fmt.Sprint(p))
				}
			}()

			sem <- struct{}{}
			defer func() { <-sem }()

			artifact, err := durable.Do(ctx, r.steps, withVariant(fmt.Sprintf("tts %d", u.Index), r.variant), policy, func(ctx context.Context) (models.AudioArtifact, error) {
				return r.synthesizeUtterance(ctx, podcastKey, u)
			})
			if err != nil {
				r.logger.Warn("Utterance dropped", "index", u.Index, "speaker", u.SpeakerName, "error", err)
				return
			}
			results[i] = &artifact
		}(i, u)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	artifacts := make([]models.AudioArtifact, 0, len(results))
	for _, a := range results {
		if a != nil {
			artifacts = append(artifacts, *a)
		}
	}
	r.logger.Info("Speech rendered", "utterances", len(utterances), "artifacts", len(artifacts))
	return utterances, artifacts, nil
}

func (r *run) synthesizeUtterance(ctx context.Context, podcastKey string, u models.Utterance) (models.AudioArtifact, error) {
	audio, err := r.env.Speaker.Synthesize(ctx, u.Text, u.Gender)
	if err != nil {
		return models.AudioArtifact{}, err
	}
	if len(audio) == 0 {
		return models.AudioArtifact{}, speech.ErrEmptyAudio
	}

	blobKey := utteranceBlobKey(podcastKey, r.variant, u.Index)
	if err := r.env.Blobs.Put(ctx, blobKey, audio); err != nil {
		return models.AudioArtifact{}, fmt.Errorf("store audio %d: %w", u.Index, err)
	}
	publicURL := r.env.Blobs.URL(blobKey)
	if err := r.env.Checkpoints.Put(ctx, audioCheckpointKey(r.rc.RunID, r.variant, u.Index), publicURL, r.settings.CheckpointTTL); err != nil {
		return models.AudioArtifact{}, fmt.Errorf("checkpoint audio %d: %w", u.Index, err)
	}

	return models.AudioArtifact{
		UtteranceIndex: u.Index,
		StorageKey:     blobKey,
		PublicURL:      publicURL,
	}, nil
}
