package job

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"geotech-rag/internal/chromemdb"
	"geotech-rag/internal/rag"
)

// StaleIndexJob warns when the PDF folder no longer matches the persisted
// index. Rebuilding stays a manual action.
type StaleIndexJob struct {
	builder *rag.Builder
}

func NewStaleIndexJob(builder *rag.Builder) *StaleIndexJob {
	return &StaleIndexJob{builder: builder}
}

func (j *StaleIndexJob) Name() string {
	return "stale_index_check"
}

func (j *StaleIndexJob) Run(ctx context.Context) error {
	st, err := j.builder.Staleness(ctx)
	if errors.Is(err, chromemdb.ErrIndexNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if st.Stale() {
		log.Warn().
			Strs("added", st.Added).
			Strs("removed", st.Removed).
			Msg("PDF folder changed since the index was built, rebuild to include the changes")
	}
	return nil
}
