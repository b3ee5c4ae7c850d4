// Package telemetrytest provides an in-memory telemetry.API for asserting on reports in tests.
package telemetrytest

import (
	"strings"
	"sync"
)

type Kind int

const (
	KindBroken Kind = iota
	KindWarning
	KindInfo
	KindDebug
	KindCount
)

type Report struct {
	Kind   Kind
	ID     string
	Params []any
	Count  int64
}

// Recorder implements telemetry.API by keeping every report in memory.
type Recorder struct {
	mutex   sync.Mutex
	reports []Report
}

func (r *Recorder) add(report Report) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.reports = append(r.reports, report)
}

func (r *Recorder) ReportBroken(id string, params ...any) {
	r.add(Report{Kind: KindBroken, ID: id, Params: params})
}

func (r *Recorder) ReportWarning(id string, params ...any) {
	r.add(Report{Kind: KindWarning, ID: id, Params: params})
}

func (r *Recorder) ReportInfo(msg string, params ...any) {
	r.add(Report{Kind: KindInfo, ID: msg, Params: params})
}

func (r *Recorder) ReportDebug(msg string, params ...any) {
	r.add(Report{Kind: KindDebug, ID: msg, Params: params})
}

func (r *Recorder) ReportCount(id string, count int64) {
	r.add(Report{Kind: KindCount, ID: id, Count: count})
}

// Reports returns a copy of everything reported so far.
func (r *Recorder) Reports() []Report {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	out := make([]Report, len(r.reports))
	copy(out, r.reports)
	return out
}

// Find returns the reports of the given kind whose id contains `substr`.
func (r *Recorder) Find(kind Kind, substr string) []Report {
	var out []Report
	for _, report := range r.Reports() {
		if report.Kind == kind && strings.Contains(report.ID, substr) {
			out = append(out, report)
		}
	}
	return out
}
