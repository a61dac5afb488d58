package cli

import (
	"time"

	"github.com/docsmith/docsmith/internal/runner"
	"github.com/docsmith/docsmith/internal/store"
)

// JSON projections shared by build and history output. Durations are
// milliseconds; timestamps are RFC 3339.
type buildView struct {
	ID         string     `json:"id"`
	Project    string     `json:"project"`
	Version    string     `json:"version"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	Formats    []string   `json:"formats,omitempty"`
	Manifest   string     `json:"manifest,omitempty"`
	PlanDigest string     `json:"plan_digest,omitempty"`
	Started    time.Time  `json:"started"`
	DurationMS int64      `json:"duration_ms"`
	Steps      []stepView `json:"steps,omitempty"`
}

type stepView struct {
	Seq        int    `json:"seq"`
	Phase      string `json:"phase"`
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Status     string `json:"status"`
	ExitCode   int    `json:"exit_code"`
	DurationMS int64  `json:"duration_ms"`
	LogTail    string `json:"log_tail,omitempty"`
}

func viewFromResult(res *runner.BuildResult, manifestRel string, formats []string) buildView {
	v := buildView{
		ID:         res.ID,
		Project:    res.Project,
		Version:    res.Version,
		Status:     string(res.Status),
		Error:      res.Error,
		Formats:    formats,
		Manifest:   manifestRel,
		PlanDigest: res.PlanDigest,
		Started:    res.Started,
		DurationMS: res.Duration.Milliseconds(),
	}
	for _, sr := range res.Steps {
		v.Steps = append(v.Steps, stepView{
			Seq:        sr.Seq,
			Phase:      sr.Phase,
			Name:       sr.Name,
			Kind:       sr.Kind,
			Status:     string(sr.Status),
			ExitCode:   sr.ExitCode,
			DurationMS: sr.Duration.Milliseconds(),
			LogTail:    sr.LogTail,
		})
	}
	return v
}

func viewFromRecord(b *store.Build) buildView {
	v := buildView{
		ID:         b.ID,
		Project:    b.Project,
		Version:    b.Version,
		Status:     b.Status,
		Error:      b.Error,
		Formats:    b.Formats,
		Manifest:   b.ManifestPath,
		PlanDigest: b.PlanDigest,
		Started:    b.StartedAt,
		DurationMS: b.Duration.Milliseconds(),
	}
	for _, st := range b.Steps {
		v.Steps = append(v.Steps, stepView{
			Seq:        st.Seq,
			Phase:      st.Phase,
			Name:       st.Name,
			Kind:       st.Kind,
			Status:     st.Status,
			ExitCode:   st.ExitCode,
			DurationMS: st.Duration.Milliseconds(),
			LogTail:    st.LogTail,
		})
	}
	return v
}
