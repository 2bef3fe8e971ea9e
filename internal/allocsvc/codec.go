package allocsvc

import (
	"fmt"
	"math"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/constellation-allocator/core"
)

// Allocator selections accepted in AllocateRequest.Allocator.
const (
	SelectExact  = "exact"
	SelectGreedy = "greedy"
	SelectBoth   = "both"
)

// AllocateRequest asks for one step to be allocated.
//
// Wire form: {"step": 1, "allocator": "both", "mode": "exhaustive", "parallel": 1}.
// Only step is required.
type AllocateRequest struct {
	Step        int
	Allocator   string
	Mode        string
	Parallelism int
}

// AllocateResponse carries the results for one step.
type AllocateResponse struct {
	RunID   string
	Dataset string
	Report  *core.StepReport
}

// SatelliteInfo is the capacity summary of one satellite.
type SatelliteInfo struct {
	ID             string
	CPU            int
	Memory         int
	CoverageRadius float64
}

// Description summarizes the loaded scenario.
type Description struct {
	Dataset      string
	Steps        int
	Applications int
	Satellites   []SatelliteInfo
}

var requestFields = map[string]bool{"step": true, "allocator": true, "mode": true, "parallel": true}

func (r AllocateRequest) toStruct() (*structpb.Struct, error) {
	m := map[string]any{"step": r.Step}
	if r.Allocator != "" {
		m["allocator"] = r.Allocator
	}
	if r.Mode != "" {
		m["mode"] = r.Mode
	}
	if r.Parallelism != 0 {
		m["parallel"] = r.Parallelism
	}
	return structpb.NewStruct(m)
}

func requestFromStruct(s *structpb.Struct) (AllocateRequest, error) {
	var req AllocateRequest
	fields := s.GetFields()
	for k := range fields {
		if !requestFields[k] {
			return req, fmt.Errorf("%w: unknown field %q", ErrBadRequest, k)
		}
	}
	if _, ok := fields["step"]; !ok {
		return req, fmt.Errorf("%w: step is required", ErrBadRequest)
	}

	var err error
	if req.Step, err = intField(fields, "step"); err != nil {
		return req, err
	}
	if req.Parallelism, err = intField(fields, "parallel"); err != nil {
		return req, err
	}
	req.Allocator = strings.ToLower(fields["allocator"].GetStringValue())
	req.Mode = fields["mode"].GetStringValue()
	return req, nil
}

func intField(fields map[string]*structpb.Value, key string) (int, error) {
	v, ok := fields[key]
	if !ok {
		return 0, nil
	}
	num, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%w: %s must be a number", ErrBadRequest, key)
	}
	f := num.NumberValue
	if f != math.Trunc(f) || math.IsInf(f, 0) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, fmt.Errorf("%w: %s must be an integer, got %v", ErrBadRequest, key, f)
	}
	return int(f), nil
}

func responseToStruct(resp *AllocateResponse) (*structpb.Struct, error) {
	results := make([]any, 0, len(resp.Report.Results))
	for i, res := range resp.Report.Results {
		assignments := make([]any, 0, len(res.Assignments))
		for _, a := range res.Assignments {
			assignments = append(assignments, map[string]any{
				"application": a.ApplicationID,
				"satellite":   a.SatelliteID,
			})
		}
		unallocated := make([]any, 0, len(res.Unallocated))
		for _, id := range res.Unallocated {
			unallocated = append(unallocated, id)
		}
		var d time.Duration
		if i < len(resp.Report.Durations) {
			d = resp.Report.Durations[i]
		}
		results = append(results, map[string]any{
			"allocator":        res.Allocator,
			"allocated":        res.Allocated,
			"assignments":      assignments,
			"unallocated":      unallocated,
			"nodes_visited":    float64(res.Stats.NodesVisited),
			"pruned":           float64(res.Stats.Pruned),
			"duration_seconds": d.Seconds(),
		})
	}
	return structpb.NewStruct(map[string]any{
		"run_id":  resp.RunID,
		"dataset": resp.Dataset,
		"step":    resp.Report.Step,
		"results": results,
	})
}

func responseFromStruct(s *structpb.Struct) *AllocateResponse {
	fields := s.GetFields()
	report := &core.StepReport{Step: int(fields["step"].GetNumberValue())}
	for _, v := range fields["results"].GetListValue().GetValues() {
		rf := v.GetStructValue().GetFields()
		res := &core.Result{
			Allocator: rf["allocator"].GetStringValue(),
			Step:      report.Step,
			Allocated: int(rf["allocated"].GetNumberValue()),
			Stats: core.SearchStats{
				NodesVisited: int64(rf["nodes_visited"].GetNumberValue()),
				Pruned:       int64(rf["pruned"].GetNumberValue()),
			},
		}
		for _, av := range rf["assignments"].GetListValue().GetValues() {
			af := av.GetStructValue().GetFields()
			res.Assignments = append(res.Assignments, core.Assignment{
				ApplicationID: af["application"].GetStringValue(),
				SatelliteID:   af["satellite"].GetStringValue(),
			})
		}
		for _, uv := range rf["unallocated"].GetListValue().GetValues() {
			res.Unallocated = append(res.Unallocated, uv.GetStringValue())
		}
		report.Results = append(report.Results, res)
		report.Durations = append(report.Durations,
			time.Duration(rf["duration_seconds"].GetNumberValue()*float64(time.Second)))
	}
	return &AllocateResponse{
		RunID:   fields["run_id"].GetStringValue(),
		Dataset: fields["dataset"].GetStringValue(),
		Report:  report,
	}
}

func descriptionToStruct(d *Description) (*structpb.Struct, error) {
	sats := make([]any, 0, len(d.Satellites))
	for _, s := range d.Satellites {
		sats = append(sats, map[string]any{
			"id":              s.ID,
			"cpu":             s.CPU,
			"memory":          s.Memory,
			"coverage_radius": s.CoverageRadius,
		})
	}
	return structpb.NewStruct(map[string]any{
		"dataset":      d.Dataset,
		"steps":        d.Steps,
		"applications": d.Applications,
		"satellites":   sats,
	})
}

func descriptionFromStruct(s *structpb.Struct) *Description {
	fields := s.GetFields()
	d := &Description{
		Dataset:      fields["dataset"].GetStringValue(),
		Steps:        int(fields["steps"].GetNumberValue()),
		Applications: int(fields["applications"].GetNumberValue()),
	}
	for _, v := range fields["satellites"].GetListValue().GetValues() {
		sf := v.GetStructValue().GetFields()
		d.Satellites = append(d.Satellites, SatelliteInfo{
			ID:             sf["id"].GetStringValue(),
			CPU:            int(sf["cpu"].GetNumberValue()),
			Memory:         int(sf["memory"].GetNumberValue()),
			CoverageRadius: sf["coverage_radius"].GetNumberValue(),
		})
	}
	return d
}
