package limsapi

import (
	"context"
	"fmt"
	"io"
	"sort"
)

// Analyte is the artifact type carrying sample material through a step.
const typeAnalyte = "Analyte"

// Result file outputs shared across all inputs of a step.
const generationPerAllInputs = "PerAllInputs"

// InputAnalytes fetches the analyte artifacts entering the process.
func (c *Client) InputAnalytes(ctx context.Context, proc *Resource) ([]*Resource, error) {
	if proc.kind != KindProcess {
		return nil, fmt.Errorf("input analytes of a %s", proc.kind)
	}
	seen := make(map[string]bool)
	var out []*Resource
	for _, m := range proc.doc.IOMaps {
		if m.Input == nil || seen[m.Input.LimsID] {
			continue
		}
		seen[m.Input.LimsID] = true
		art, err := c.Artifact(ctx, m.Input.LimsID)
		if err != nil {
			return nil, err
		}
		if art.doc.Type != "" && art.doc.Type != typeAnalyte {
			continue
		}
		out = append(out, art)
	}
	return out, nil
}

// ProjectsForProcess resolves the distinct projects behind the process
// inputs: input analytes, their samples, each sample's project. A process
// handling artifacts from several projects yields all of them.
func (c *Client) ProjectsForProcess(ctx context.Context, proc *Resource) ([]*Resource, error) {
	analytes, err := c.InputAnalytes(ctx, proc)
	if err != nil {
		return nil, err
	}
	projectIDs := make(map[string]bool)
	for _, art := range analytes {
		for _, s := range art.doc.Samples {
			sample, err := c.Sample(ctx, s.LimsID)
			if err != nil {
				return nil, err
			}
			if sample.doc.Project != nil && sample.doc.Project.LimsID != "" {
				projectIDs[sample.doc.Project.LimsID] = true
			}
		}
	}
	ids := make([]string, 0, len(projectIDs))
	for id := range projectIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*Resource, 0, len(ids))
	for _, id := range ids {
		project, err := c.Project(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, project)
	}
	return out, nil
}

// SamplesForArtifact fetches the samples an artifact derives from.
func (c *Client) SamplesForArtifact(ctx context.Context, art *Resource) ([]*Resource, error) {
	if art.kind != KindArtifact {
		return nil, fmt.Errorf("samples of a %s", art.kind)
	}
	out := make([]*Resource, 0, len(art.doc.Samples))
	for _, s := range art.doc.Samples {
		sample, err := c.Sample(ctx, s.LimsID)
		if err != nil {
			return nil, err
		}
		out = append(out, sample)
	}
	return out, nil
}

// SharedResultFile finds the shared (per-all-inputs) result file output of
// the process with the given artifact name, e.g. "Qubit Result File".
func (c *Client) SharedResultFile(ctx context.Context, proc *Resource, name string) (*Resource, error) {
	if proc.kind != KindProcess {
		return nil, fmt.Errorf("result files of a %s", proc.kind)
	}
	seen := make(map[string]bool)
	for _, m := range proc.doc.IOMaps {
		out := m.Output
		if out == nil || seen[out.LimsID] {
			continue
		}
		seen[out.LimsID] = true
		if out.OutputType != "ResultFile" || out.GenerationType != generationPerAllInputs {
			continue
		}
		art, err := c.Artifact(ctx, out.LimsID)
		if err != nil {
			return nil, err
		}
		if art.Name() == name {
			return art, nil
		}
	}
	return nil, fmt.Errorf("process %s has no shared result file named %q", proc.id, name)
}

// OpenResultFile streams the uploaded content behind a result file artifact.
func (c *Client) OpenResultFile(ctx context.Context, art *Resource) (io.ReadCloser, error) {
	if art.doc.File == nil || art.doc.File.LimsID == "" {
		return nil, fmt.Errorf("no file uploaded for result file %s", art.id)
	}
	return c.Download(ctx, art.doc.File.LimsID)
}
