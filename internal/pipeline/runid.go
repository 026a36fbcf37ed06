package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/thinkscotty/podcaster/internal/models"
)

var runNamespace = uuid.MustParse("6f1c2a4e-8d3b-4b7a-9e52-3c0d1f7a9b64")

// NewRunContext builds the identity of a run. The id is derived from
// environment, pipeline and date so a restarted run reuses its checkpoints;
// fresh forces a random id and therefore a clean run.
func NewRunContext(environment, pipelineName, date string, fresh bool) models.RunContext {
	if date == "" {
		date = time.Now().Format(time.DateOnly)
	}
	id := uuid.NewSHA1(runNamespace, []byte(environment+":"+pipelineName+":"+date))
	if fresh {
		id = uuid.New()
	}
	return models.RunContext{
		RunID:       id.String(),
		RunDate:     date,
		Environment: environment,
	}
}
