// Package projectio loads a domain.Project from a plain JSON document. It is
// a thin ambient ingestion format for cmd/scheduler, not a declarative
// scheduling language: it covers the core project/resource/task/dependency
// shape and leaves shifts, limits, and leaves to be set programmatically by
// callers that embed the scheduler as a library.
package projectio

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	domain "github.com/taskgrid/scheduler/internal/scheduling/domain"
)

// Document is the on-disk shape loaded into a domain.Project.
type Document struct {
	Name        string        `json:"name"`
	Start       time.Time     `json:"start"`
	End         time.Time     `json:"end"`
	Granularity string        `json:"granularity"`
	Timezone    string        `json:"timezone"`
	WorkingDays []dayWindow   `json:"working_days"`
	Resources   []resourceDoc `json:"resources"`
	Tasks       []taskDoc     `json:"tasks"`
	Scenarios   []scenarioDoc `json:"scenarios"`
}

type dayWindow struct {
	Day      string `json:"day"` // "monday".."sunday"
	StartMin int    `json:"start_min"`
	EndMin   int    `json:"end_min"`
}

type resourceDoc struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Efficiency  float64     `json:"efficiency"`
	WorkingDays []dayWindow `json:"working_days"`
	Manager     string      `json:"manager"`
	Parent      string      `json:"parent"`
}

type taskDoc struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Parent          string          `json:"parent"`
	Priority        int             `json:"priority"`
	SeqNo           int             `json:"seq_no"`
	EffortHours     float64         `json:"effort_hours"`
	LengthMinutes   int             `json:"length_minutes"`
	DurationMinutes int             `json:"duration_minutes"`
	ExplicitStart   *time.Time      `json:"explicit_start"`
	ExplicitEnd     *time.Time      `json:"explicit_end"`
	MinStart        *time.Time      `json:"min_start"`
	MaxStart        *time.Time      `json:"max_start"`
	MinEnd          *time.Time      `json:"min_end"`
	MaxEnd          *time.Time      `json:"max_end"`
	Backward        bool            `json:"backward"`
	Depends         []dependencyDoc `json:"depends"`
	Precedes        []dependencyDoc `json:"precedes"`
	Allocations     []allocationDoc `json:"allocations"`
}

type dependencyDoc struct {
	Target           string `json:"target"`
	GapMinutes       int    `json:"gap_minutes"`
	GapIsWorkingTime bool   `json:"gap_is_working_time"`
	RefOnEnd         bool   `json:"ref_on_end"`
}

type allocationDoc struct {
	Candidates    []string `json:"candidates"`
	SelectionMode string   `json:"selection_mode"`
	Mandatory     bool     `json:"mandatory"`
	Persistent    bool     `json:"persistent"`
	Atomic        bool     `json:"atomic"`
	ShiftName     string   `json:"shift_name"`
}

type scenarioDoc struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// Load reads a Document from r and builds a fully populated domain.Project.
func Load(r io.Reader) (*domain.Project, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode project document: %w", err)
	}
	return Build(doc)
}

// Build constructs a domain.Project from an already-decoded Document.
func Build(doc Document) (*domain.Project, error) {
	tz := time.UTC
	if doc.Timezone != "" {
		loc, err := time.LoadLocation(doc.Timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", doc.Timezone, err)
		}
		tz = loc
	}

	granularity := time.Hour
	if doc.Granularity != "" {
		d, err := time.ParseDuration(doc.Granularity)
		if err != nil {
			return nil, fmt.Errorf("parse granularity %q: %w", doc.Granularity, err)
		}
		granularity = d
	}

	project, err := domain.NewProject(doc.Name, doc.Start, doc.End, granularity, tz)
	if err != nil {
		return nil, fmt.Errorf("new project: %w", err)
	}
	project.DailyWorkingHours = buildWorkingHours(doc.WorkingDays)

	resourceHandles := make(map[string]domain.ResourceHandle, len(doc.Resources))
	for _, rd := range doc.Resources {
		r := domain.NewResource(domain.NoResource, rd.ID, rd.Name)
		if rd.Efficiency > 0 {
			r.Efficiency = rd.Efficiency
		}
		if len(rd.WorkingDays) > 0 {
			r.WorkingHours = buildWorkingHours(rd.WorkingDays)
		}
		handle := project.AddResource(r)
		resourceHandles[rd.ID] = handle
	}
	for _, rd := range doc.Resources {
		if rd.Manager == "" {
			continue
		}
		managerHandle, ok := resourceHandles[rd.Manager]
		if !ok {
			return nil, fmt.Errorf("resource %q references unknown manager %q", rd.ID, rd.Manager)
		}
		project.Resources[resourceHandles[rd.ID]].ManagerHandle = managerHandle
	}
	for _, rd := range doc.Resources {
		if rd.Parent == "" {
			continue
		}
		parentHandle, ok := resourceHandles[rd.Parent]
		if !ok {
			return nil, fmt.Errorf("resource %q references unknown parent %q", rd.ID, rd.Parent)
		}
		project.LinkChildResource(parentHandle, resourceHandles[rd.ID])
	}

	taskHandles := make(map[string]domain.TaskHandle, len(doc.Tasks))
	for i, td := range doc.Tasks {
		t := domain.NewTask(domain.NoTask, td.ID, td.Name, i)
		if td.SeqNo != 0 {
			t.SeqNo = td.SeqNo
		}
		if td.Priority != 0 {
			t.Priority = td.Priority
		}
		t.EffortHours = td.EffortHours
		if td.LengthMinutes > 0 {
			t.Length = time.Duration(td.LengthMinutes) * time.Minute
		}
		if td.DurationMinutes > 0 {
			t.DurationSpan = time.Duration(td.DurationMinutes) * time.Minute
		}
		t.ExplicitStart = td.ExplicitStart
		t.ExplicitEnd = td.ExplicitEnd
		t.MinStart = td.MinStart
		t.MaxStart = td.MaxStart
		t.MinEnd = td.MinEnd
		t.MaxEnd = td.MaxEnd
		if td.Backward {
			t.Direction = domain.DirectionALAP
		}
		handle := project.AddTask(t)
		taskHandles[td.ID] = handle
	}

	for _, td := range doc.Tasks {
		if td.Parent == "" {
			continue
		}
		parentHandle, ok := taskHandles[td.Parent]
		if !ok {
			return nil, fmt.Errorf("task %q references unknown parent %q", td.ID, td.Parent)
		}
		project.LinkChildTask(parentHandle, taskHandles[td.ID])
	}

	for _, td := range doc.Tasks {
		task := project.Tasks[taskHandles[td.ID]]
		for _, dd := range td.Depends {
			dep, err := buildDependency(dd, taskHandles)
			if err != nil {
				return nil, fmt.Errorf("task %q depends: %w", td.ID, err)
			}
			task.Depends = append(task.Depends, dep)
		}
		for _, dd := range td.Precedes {
			dep, err := buildDependency(dd, taskHandles)
			if err != nil {
				return nil, fmt.Errorf("task %q precedes: %w", td.ID, err)
			}
			task.Precedes = append(task.Precedes, dep)
		}
		for _, ad := range td.Allocations {
			alloc, err := buildAllocation(ad, resourceHandles)
			if err != nil {
				return nil, fmt.Errorf("task %q allocation: %w", td.ID, err)
			}
			task.Allocations = append(task.Allocations, alloc)
		}
	}

	if len(doc.Scenarios) == 0 {
		project.AddScenario(domain.NewScenario(0, "base"))
	} else {
		for _, sd := range doc.Scenarios {
			s := domain.NewScenario(0, sd.Name)
			s.Active = sd.Active
			project.AddScenario(s)
		}
	}

	return project, nil
}

func buildWorkingHours(windows []dayWindow) domain.WorkingHours {
	wh := domain.NewWorkingHours()
	for _, w := range windows {
		day, ok := weekdayByName[w.Day]
		if !ok {
			continue
		}
		existing := wh.Weekly[int(day)]
		wh.Set(day, append(existing, domain.TimeRange{StartMin: w.StartMin, EndMin: w.EndMin})...)
	}
	return wh
}

var weekdayByName = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func buildDependency(dd dependencyDoc, taskHandles map[string]domain.TaskHandle) (domain.Dependency, error) {
	target, ok := taskHandles[dd.Target]
	if !ok {
		return domain.Dependency{}, fmt.Errorf("unknown target task %q", dd.Target)
	}
	ref := domain.RefOnStart
	if dd.RefOnEnd {
		ref = domain.RefOnEnd
	}
	return domain.Dependency{
		Target:           target,
		Gap:              time.Duration(dd.GapMinutes) * time.Minute,
		GapIsWorkingTime: dd.GapIsWorkingTime,
		Ref:              ref,
	}, nil
}

var selectionModeByName = map[string]domain.SelectionMode{
	"order":         domain.SelectionOrder,
	"min_allocated": domain.SelectionMinAllocated,
	"min_loaded":    domain.SelectionMinLoaded,
	"max_loaded":    domain.SelectionMaxLoaded,
	"random":        domain.SelectionRandom,
}

func buildAllocation(ad allocationDoc, resourceHandles map[string]domain.ResourceHandle) (domain.Allocation, error) {
	candidates := make([]domain.ResourceHandle, 0, len(ad.Candidates))
	for _, id := range ad.Candidates {
		handle, ok := resourceHandles[id]
		if !ok {
			return domain.Allocation{}, fmt.Errorf("unknown candidate resource %q", id)
		}
		candidates = append(candidates, handle)
	}
	mode := domain.SelectionOrder
	if ad.SelectionMode != "" {
		m, ok := selectionModeByName[ad.SelectionMode]
		if !ok {
			return domain.Allocation{}, fmt.Errorf("unknown selection mode %q", ad.SelectionMode)
		}
		mode = m
	}
	return domain.Allocation{
		Candidates:    candidates,
		SelectionMode: mode,
		Mandatory:     ad.Mandatory,
		Persistent:    ad.Persistent,
		Atomic:        ad.Atomic,
		ShiftName:     ad.ShiftName,
	}, nil
}
