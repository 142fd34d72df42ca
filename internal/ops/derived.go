package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/kino/internal/config"
	"github.com/hpungsan/kino/internal/errors"
	"github.com/hpungsan/kino/internal/markup"
	"github.com/hpungsan/kino/internal/resolve"
	"github.com/hpungsan/kino/internal/script"
	"github.com/hpungsan/kino/internal/tasks"
	"github.com/hpungsan/kino/internal/timeline"
)

// ListTasksInput contains parameters for the ListTasks operation.
type ListTasksInput struct {
	ScriptID string
	Status   string // optional filter: todo, in-progress, done
}

// ListTasksOutput contains the result of the ListTasks operation.
type ListTasksOutput struct {
	ScriptID string        `json:"script_id"`
	Items    []tasks.Item  `json:"items"`
	Summary  tasks.Summary `json:"summary"`
}

// ListTasks aggregates every checklist item in the script. The summary always counts
// all items, before filtering.
func ListTasks(ctx context.Context, database *sql.DB, cfg *config.Config, input ListTasksInput) (*ListTasksOutput, error) {
	var status markup.Status
	if input.Status != "" {
		var ok bool
		if status, ok = markup.ParseStatus(input.Status); !ok {
			return nil, errors.NewInvalidRequest("status must be one of: todo, in-progress, done")
		}
	}
	s, err := load(ctx, database, cfg, input.ScriptID, "task_list")
	if err != nil {
		return nil, err
	}
	all := tasks.ExtractAll(s)
	items := tasks.Filter(all, status)
	if items == nil {
		items = []tasks.Item{}
	}
	return &ListTasksOutput{ScriptID: s.ID, Items: items, Summary: tasks.Summarize(all)}, nil
}

// SetTaskStatusInput contains parameters for the SetTaskStatus operation.
type SetTaskStatusInput struct {
	ScriptID string
	TaskID   string // composite owner-field-index id from ListTasks
	Status   string
}

// SetTaskStatusOutput contains the result of the SetTaskStatus operation.
type SetTaskStatusOutput struct {
	Task tasks.Item `json:"task"`
}

// SetTaskStatus rewrites the status of one task inside its source field. A task id
// that no longer points at a task is NOT_FOUND, and nothing is written.
func SetTaskStatus(ctx context.Context, database *sql.DB, cfg *config.Config, input SetTaskStatusInput) (*SetTaskStatusOutput, error) {
	status, ok := markup.ParseStatus(input.Status)
	if !ok {
		return nil, errors.NewInvalidRequest("status must be one of: todo, in-progress, done")
	}
	var updated tasks.Item
	_, err := mutate(ctx, database, cfg, input.ScriptID, "task_set_status", func(s *script.Script) error {
		item, ok := tasks.Find(s, input.TaskID)
		if !ok {
			return errors.NewNotFound("task", input.TaskID)
		}
		if !tasks.WriteStatus(s, item, status) {
			return errors.NewNotFound("task", input.TaskID)
		}
		updated, _ = tasks.Find(s, input.TaskID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &SetTaskStatusOutput{Task: updated}, nil
}

// TimelineOutput is a timeline plus the structure overlays a renderer can draw on it.
type TimelineOutput struct {
	ScriptID  string              `json:"script_id"`
	Timeline  timeline.Timeline   `json:"timeline"`
	Templates []timeline.Template `json:"templates"`
}

// Timeline lays the script out on one time axis.
func Timeline(ctx context.Context, database *sql.DB, cfg *config.Config, scriptID string) (*TimelineOutput, error) {
	s, err := load(ctx, database, cfg, scriptID, "timeline")
	if err != nil {
		return nil, err
	}
	minTotal := timeline.DefaultMinTotal
	if cfg != nil && cfg.TimelineMinSeconds > 0 {
		minTotal = cfg.TimelineMinSeconds
	}
	return &TimelineOutput{
		ScriptID:  s.ID,
		Timeline:  timeline.Build(s, minTotal),
		Templates: timeline.Templates,
	}, nil
}

// StatsOutput contains the result of the Stats operation.
type StatsOutput struct {
	ScriptID string        `json:"script_id"`
	Stats    script.Stats  `json:"stats"`
	Nodes    int           `json:"nodes"`
	Tasks    tasks.Summary `json:"tasks"`
	Versions int           `json:"versions"`
}

// Stats reports word count, resource count, duration and task progress.
func Stats(ctx context.Context, database *sql.DB, cfg *config.Config, scriptID string) (*StatsOutput, error) {
	s, err := load(ctx, database, cfg, scriptID, "stats")
	if err != nil {
		return nil, err
	}
	return &StatsOutput{
		ScriptID: s.ID,
		Stats:    s.Stats(),
		Nodes:    s.Len(),
		Tasks:    tasks.Summarize(tasks.ExtractAll(s)),
		Versions: len(s.History),
	}, nil
}

// ReferencesInput contains parameters for the References operation.
type ReferencesInput struct {
	ScriptID   string
	ResourceID string
}

// ReferencesOutput lists where a resource is mentioned.
type ReferencesOutput struct {
	ResourceID string           `json:"resource_id"`
	Mentions   []script.Mention `json:"mentions"`
	// Backlinks are the resources whose descriptions mention this one.
	Backlinks []string `json:"backlinks"`
}

// References reports every field that chips a resource. Deleted resources can still be
// queried, so dangling chips can be found.
func References(ctx context.Context, database *sql.DB, cfg *config.Config, input ReferencesInput) (*ReferencesOutput, error) {
	if input.ResourceID == "" {
		return nil, errors.NewInvalidRequest("resource_id is required")
	}
	s, err := load(ctx, database, cfg, input.ScriptID, "references")
	if err != nil {
		return nil, err
	}
	out := &ReferencesOutput{
		ResourceID: input.ResourceID,
		Mentions:   s.Mentions()[input.ResourceID],
		Backlinks:  resolve.Backlinks(s.Resources, input.ResourceID),
	}
	if out.Mentions == nil {
		out.Mentions = []script.Mention{}
	}
	if out.Backlinks == nil {
		out.Backlinks = []string{}
	}
	return out, nil
}
