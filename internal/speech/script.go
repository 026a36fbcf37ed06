package speech

import (
	"iter"
	"strings"

	"github.com/thinkscotty/podcaster/internal/models"
)

// maleMarkers flip a speaker's voice to male when found in the label.
var maleMarkers = []string{"Dr", "刘", "男"}

// Voicer derives a voice gender from a speaker label.
type Voicer struct {
	markers []string
}

// NewVoicer returns a Voicer that recognises the built-in male markers plus extra.
func NewVoicer(extra ...string) Voicer {
	markers := append([]string(nil), maleMarkers...)
	for _, m := range extra {
		if m = strings.TrimSpace(m); m != "" {
			markers = append(markers, m)
		}
	}
	return Voicer{markers: markers}
}

// Markers lists the label substrings that select the male voice.
func (v Voicer) Markers() []string { return v.markers }

// GenderFor defaults to female and returns male if the label contains a marker.
func (v Voicer) GenderFor(speaker string) models.Gender {
	for _, m := range v.markers {
		if strings.Contains(speaker, m) {
			return models.GenderMale
		}
	}
	return models.GenderFemale
}

// Utterances lazily splits a podcast script into speaker lines. A line
// matches when it has a non-empty label, then ':' or '：', then non-empty
// text. Non-matching lines are skipped and do not consume an index.
func (v Voicer) Utterances(script string) iter.Seq[models.Utterance] {
	return func(yield func(models.Utterance) bool) {
		index := 0
		for line := range strings.Lines(script) {
			speaker, text, ok := splitLine(line)
			if !ok {
				continue
			}
			u := models.Utterance{
				Index:       index,
				SpeakerName: speaker,
				Gender:      v.GenderFor(speaker),
				Text:        text,
			}
			if !yield(u) {
				return
			}
			index++
		}
	}
}

// splitLine splits at the first ASCII or full-width colon.
func splitLine(line string) (speaker, text string, ok bool) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return "", "", false
	}
	i := strings.IndexAny(line, ":：")
	if i <= 0 {
		return "", "", false
	}
	sep := ":"
	if strings.HasPrefix(line[i:], "：") {
		sep = "："
	}
	speaker = strings.TrimSpace(line[:i])
	text = strings.TrimSpace(line[i+len(sep):])
	if speaker == "" || text == "" {
		return "", "", false
	}
	return speaker, text, true
}
