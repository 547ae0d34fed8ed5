// Package record implements the persisted per-datapoint result contract of
// spec.md §6. HDF5 output is explicitly out of scope (spec.md's Non-goals);
// this package gives the same logical fields a JSON encoding instead, the
// way the teacher's pkg/reporting gives a TestReport a JSON encoding before
// any on-disk format decision is made.
package record

import (
	"github.com/geoinv/aem-rjmcmc/pkg/datapoint"
	"github.com/geoinv/aem-rjmcmc/pkg/inference"
	"github.com/geoinv/aem-rjmcmc/pkg/model1d"
	"github.com/geoinv/aem-rjmcmc/pkg/statarray"
)

// HitmapSnapshot is the serializable projection of a model1d.Posterior's
// depth/value hitmap (mesh.Histogram2D).
type HitmapSnapshot struct {
	DepthEdges []float64   `json:"depth_edges"`
	ValueEdges []float64   `json:"value_edges"`
	Counts     [][]float64 `json:"counts"`
}

// PosteriorSnapshot is the serializable projection of a model1d.Posterior:
// the sampled-K histogram and the depth/value hitmap (spec.md §4.H "update
// posteriors of model (depths, K, hitmap)").
type PosteriorSnapshot struct {
	KEdges  []float64       `json:"k_edges"`
	KCounts []float64       `json:"k_counts"`
	Hitmap  *HitmapSnapshot `json:"hitmap"`
}

func snapshotPosterior(p *model1d.Posterior) *PosteriorSnapshot {
	if p == nil {
		return nil
	}
	return &PosteriorSnapshot{
		KEdges:  p.K.Mesh.Edges,
		KCounts: p.K.Counts,
		Hitmap: &HitmapSnapshot{
			DepthEdges: p.Hitmap.X.Edges,
			ValueEdges: p.Hitmap.Y.Edges,
			Counts:     p.Hitmap.Counts,
		},
	}
}

// ModelSnapshot is the serializable projection of a model1d.Model1D: edges,
// values, and the accumulated K/hitmap posterior, when one is attached.
type ModelSnapshot struct {
	Edges  []float64 `json:"edges"`
	Values []float64 `json:"values"`

	Posterior *PosteriorSnapshot `json:"posterior,omitempty"`
}

func snapshotModel(m *model1d.Model1D) *ModelSnapshot {
	if m == nil {
		return nil
	}
	return &ModelSnapshot{Edges: m.Edges, Values: m.Values, Posterior: snapshotPosterior(m.Posterior)}
}

// ParameterSnapshot is the serializable projection of a statarray.Parameter.
// Prior/Proposal are distribution.Distribution interfaces with no fixed
// JSON shape across variants, so only the current value and the
// accumulated posterior counts are persisted — the logical content the
// spec names ("current-...-with-posteriors"), not a re-derivable prior
// definition that belongs to the run's options file, not its result.
type ParameterSnapshot struct {
	Value           []float64 `json:"value"`
	PosteriorEdges  []float64 `json:"posterior_edges,omitempty"`
	PosteriorCounts []float64 `json:"posterior_counts,omitempty"`
}

func snapshotParameter(p *statarray.Parameter) *ParameterSnapshot {
	if p == nil {
		return nil
	}
	s := &ParameterSnapshot{Value: p.Value}
	if p.Posterior != nil {
		s.PosteriorEdges = p.Posterior.Mesh.Edges
		s.PosteriorCounts = p.Posterior.Counts
	}
	return s
}

// DatapointSnapshot is the serializable projection of a datapoint.Datapoint:
// identity, observed/predicted channels, and the nuisance parameters'
// current values and posteriors.
type DatapointSnapshot struct {
	LineNumber float64 `json:"line_number"`
	Fiducial   float64 `json:"fiducial"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Elevation  float64 `json:"elevation"`

	Observed  []float64 `json:"observed"`
	Predicted []float64 `json:"predicted"`

	Height *ParameterSnapshot `json:"height,omitempty"`
	RelErr *ParameterSnapshot `json:"rel_err,omitempty"`
	AddErr *ParameterSnapshot `json:"add_err,omitempty"`
}

func snapshotDatapoint(d *datapoint.Datapoint) *DatapointSnapshot {
	if d == nil {
		return nil
	}
	return &DatapointSnapshot{
		LineNumber: d.LineNumber,
		Fiducial:   d.Fiducial,
		X:          d.X,
		Y:          d.Y,
		Z:          d.Z,
		Elevation:  d.Elevation,
		Observed:   d.Observed,
		Predicted:  d.Predicted,
		Height:     snapshotParameter(d.Height),
		RelErr:     snapshotParameter(d.RelErr),
		AddErr:     snapshotParameter(d.AddErr),
	}
}

// DatapointRecord is the exact logical field set of spec.md §6's "Persisted
// record per datapoint".
type DatapointRecord struct {
	Iteration         int     `json:"iteration"`
	BurnedInIteration int     `json:"burned_in_iteration"`
	BestIteration     int     `json:"best_iteration"`
	BurnedIn          bool    `json:"burned_in"`
	Failed            bool    `json:"failed"`
	Multiplier        float64 `json:"multiplier"`

	AcceptanceRate []float64 `json:"acceptance_rate"`
	MisfitTrace    []float64 `json:"misfit_trace"`
	Halfspace      float64   `json:"halfspace"`

	BestModel     *ModelSnapshot     `json:"best_model"`
	BestDatapoint *DatapointSnapshot `json:"best_datapoint"`

	CurrentModel     *ModelSnapshot     `json:"current_model"`
	CurrentDatapoint *DatapointSnapshot `json:"current_datapoint"`
}

// FromResult builds the persisted record from an inference.Result. Fiducial
// is not itself a record field (spec.md §6 keys records by fiducial at the
// store layer, not inside the record), but callers use it to name the file.
func FromResult(result *inference.Result) *DatapointRecord {
	return &DatapointRecord{
		Iteration:         result.Iteration,
		BurnedInIteration: result.BurnedInIteration,
		BestIteration:     result.BestIteration,
		BurnedIn:          result.BurnedIn,
		Failed:            result.Failed,
		Multiplier:        result.Multiplier,
		AcceptanceRate:    result.AcceptanceRate,
		MisfitTrace:       result.MisfitTrace,
		Halfspace:         result.Halfspace,
		BestModel:         snapshotModel(result.BestModel),
		BestDatapoint:     snapshotDatapoint(result.BestDatapoint),
		CurrentModel:      snapshotModel(result.CurrentModel),
		CurrentDatapoint:  snapshotDatapoint(result.CurrentDatapoint),
	}
}
