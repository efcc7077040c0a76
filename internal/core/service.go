package core

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/JonMunkholm/proddash/internal/snapshot"
	"github.com/JonMunkholm/proddash/internal/summary"
)

// Mode selects a dashboard view.
type Mode struct {
	Basis summary.Basis
	Week  summary.WeekMode
}

// ParseMode maps query input to a Mode. Empty values mean quantity basis and
// the current week.
func ParseMode(basis, week string) (Mode, error) {
	b, ok := summary.ParseBasis(basis)
	if !ok {
		return Mode{}, fmt.Errorf("%w: %q", summary.ErrUnknownBasis, basis)
	}
	w, ok := summary.ParseWeekMode(week)
	if !ok {
		return Mode{}, fmt.Errorf("%w: %q", ErrUnknownWeek, week)
	}
	return Mode{Basis: b, Week: w}, nil
}

// SummaryView is a View plus the sync state it was read with.
type SummaryView struct {
	summary.View
	Sync  snapshot.SyncMetadata `json:"sync"`
	Stale bool                  `json:"stale"`
	Empty bool                  `json:"empty"`
}

// RefreshResponse answers a refresh request. Result is set only when the
// caller waited for the cycle.
type RefreshResponse struct {
	Status RefreshStatus `json:"status"`
	Result *CycleResult  `json:"result,omitempty"`
}

// ExportFile is the raw workbook behind the published Summary.
type ExportFile struct {
	Name        string
	Data        []byte
	ContentHash string
}

// Service is the read/refresh facade used by the web and CLI layers.
// Reads never touch the network.
type Service struct {
	store  *snapshot.Store
	syncer *Syncer
}

// NewService creates a Service over store. syncer may be nil for read-only use.
func NewService(store *snapshot.Store, syncer *Syncer) *Service {
	return &Service{store: store, syncer: syncer}
}

// GetSummary returns the published view for mode. Before the first successful
// sync this is the empty view with zero totals, not an error.
func (s *Service) GetSummary(mode Mode) (SummaryView, error) {
	if mode.Basis == "" {
		mode.Basis = summary.BasisQuantity
	}
	if mode.Week == "" {
		mode.Week = summary.WeekCurrent
	}
	if mode.Week != summary.WeekCurrent && mode.Week != summary.WeekNext {
		return SummaryView{}, fmt.Errorf("%w: %q", ErrUnknownWeek, mode.Week)
	}

	sum, meta := s.store.Read()
	v, err := sum.View(mode.Basis, mode.Week)
	if err != nil {
		return SummaryView{}, err
	}
	return SummaryView{
		View:  v,
		Sync:  meta,
		Stale: meta.Stale(),
		Empty: sum.IsEmpty(),
	}, nil
}

// GetSyncStatus returns the latest sync metadata.
func (s *Service) GetSyncStatus() snapshot.SyncMetadata {
	return s.store.Meta()
}

// RequestRefresh asks for an out-of-schedule cycle. With wait the call blocks
// until the cycle (started or joined) finishes and its error is returned.
func (s *Service) RequestRefresh(ctx context.Context, wait bool) (RefreshResponse, error) {
	if s.syncer == nil {
		return RefreshResponse{}, fmt.Errorf("refresh unavailable: no syncer configured")
	}
	if !wait {
		return RefreshResponse{Status: s.syncer.TriggerRefresh()}, nil
	}

	res, err := s.syncer.ForceRefresh(ctx)
	status := RefreshAccepted
	if res.Coalesced {
		status = RefreshCoalesced
	}
	if res.CycleID == "" {
		// The wait was abandoned before the cycle answered.
		return RefreshResponse{Status: status}, err
	}
	return RefreshResponse{Status: status, Result: &res}, err
}

// Sheets lists the worksheet names of the published workbook.
func (s *Service) Sheets() []string {
	sum, _ := s.store.Read()
	out := make([]string, len(sum.Sheets))
	copy(out, sum.Sheets)
	return out
}

// Export returns the workbook bytes the current Summary was built from.
func (s *Service) Export() (ExportFile, error) {
	snap := s.store.Snapshot()
	if snap.Raw == nil {
		return ExportFile{}, ErrNoData
	}
	return ExportFile{
		Name:        exportName(snap.Summary.FileName),
		Data:        snap.Raw,
		ContentHash: snap.Summary.ContentHash,
	}, nil
}

func exportName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	if name == "" || name == "." || name == "/" {
		return "workbook.xlsx"
	}
	return name
}
