package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/thinkscotty/podcaster/internal/models"
)

// StoryKey derives a stable per-story key from the full title.
func StoryKey(title string) string {
	return digest(title)
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}

// scriptVariant tags the script-dependent steps of a run that uses a supplied
// script, so a generated script and each distinct custom script checkpoint
// separately under the same run id. Generated scripts use the empty variant.
func scriptVariant(customScript string) string {
	script := strings.TrimSpace(customScript)
	if script == "" {
		return ""
	}
	return "custom-" + digest(script)
}

func withVariant(name, variant string) string {
	if variant == "" {
		return name
	}
	return name + " " + variant
}

func summaryPrefix(runID string) string {
	return "tmp:" + runID + ":story:"
}

func summaryKey(runID, storyKey string) string {
	return summaryPrefix(runID) + storyKey
}

func audioCheckpointKey(runID, variant string, index int) string {
	if variant == "" {
		return fmt.Sprintf("tmp:%s:audio:%d", runID, index)
	}
	return fmt.Sprintf("tmp:%s:audio:%s:%d", runID, variant, index)
}

// FinalAudioKey is where the assembled episode is stored:
// <yyyy>/<mm>/<dd>/<env>/<pipeline>-<date>.mp3.
func FinalAudioKey(rc models.RunContext, pipelineName string) string {
	return fmt.Sprintf("%s/%s/%s-%s.mp3", strings.ReplaceAll(rc.RunDate, "-", "/"), rc.Environment, pipelineName, rc.RunDate)
}

func utteranceBlobKey(podcastKey, variant string, index int) string {
	if variant == "" {
		return fmt.Sprintf("tmp/%s-%d.mp3", podcastKey, index)
	}
	return fmt.Sprintf("tmp/%s-%s-%d.mp3", podcastKey, variant, index)
}

// RecordKey is the run record key content:<env>:<pipeline>:<date>.
func RecordKey(environment, pipelineName, date string) string {
	return fmt.Sprintf("content:%s:%s:%s", environment, pipelineName, date)
}
