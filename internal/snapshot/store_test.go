package snapshot

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/proddash/internal/summary"
)

func TestStore_EmptyBeforeFirstPublish(t *testing.T) {
	s := New()

	sum, meta := s.Read()
	if sum == nil {
		t.Fatal("Read() returned nil summary")
	}
	if !sum.IsEmpty() {
		t.Error("initial summary is not empty")
	}
	for _, b := range summary.AllBases {
		sh, ok := sum.Basis(b)
		if !ok {
			t.Fatalf("basis %s missing from empty summary", b)
		}
		if !sh.Totals.TotalTarget.IsZero() || !sh.Totals.TotalCompleted.IsZero() {
			t.Errorf("basis %s totals = %+v, want zero", b, sh.Totals)
		}
	}
	if meta.LastSuccess != nil || meta.LastAttempt != nil || meta.LastError != nil || meta.InProgress {
		t.Errorf("initial metadata = %+v, want zero", meta)
	}
	if meta.State != StateIdle {
		t.Errorf("State = %q, want idle", meta.State)
	}
	if s.Snapshot().Raw != nil {
		t.Error("Raw should be nil before first publish")
	}
}

func TestStore_PublishKeepsMeta(t *testing.T) {
	s := New()
	s.UpdateMeta(func(m *SyncMetadata) { m.Cycles = 4 })

	next := &summary.Summary{FileName: "v1.xlsx", Bases: map[summary.Basis]*summary.Sheet{}}
	s.Publish(next, []byte("v1"))

	sum, meta := s.Read()
	if sum != next {
		t.Error("Read() did not return the published summary")
	}
	if meta.Cycles != 4 {
		t.Errorf("Cycles = %d, want 4", meta.Cycles)
	}
	if got := string(s.Snapshot().Raw); got != "v1" {
		t.Errorf("Raw = %q, want v1", got)
	}
}

func TestStore_UpdateMetaKeepsSummary(t *testing.T) {
	s := New()
	pub := &summary.Summary{FileName: "v1.xlsx"}
	s.Publish(pub, []byte("raw"))

	msg := "fetch failed"
	s.UpdateMeta(func(m *SyncMetadata) {
		m.LastError = &msg
		m.ConsecutiveFailures++
	})

	sum, meta := s.Read()
	if sum != pub {
		t.Error("UpdateMeta replaced the summary")
	}
	if meta.LastError == nil || *meta.LastError != msg || !meta.Stale() {
		t.Errorf("meta = %+v, want stale with last error", meta)
	}
	if string(s.Snapshot().Raw) != "raw" {
		t.Error("UpdateMeta dropped the raw workbook")
	}
}

func TestStore_ReadReturnsCopies(t *testing.T) {
	s := New()
	now := time.Date(2025, 11, 28, 9, 0, 0, 0, time.UTC)
	s.UpdateMeta(func(m *SyncMetadata) { m.LastSuccess = &now })

	_, meta := s.Read()
	*meta.LastSuccess = meta.LastSuccess.Add(time.Hour)

	_, again := s.Read()
	if !again.LastSuccess.Equal(now) {
		t.Errorf("LastSuccess = %v, caller mutation leaked into the store", again.LastSuccess)
	}
}

func TestStore_ConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	s := New()
	const versions = 200

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan error, 8)

	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := s.Snapshot()
				if snap.Raw == nil {
					continue
				}
				if snap.Summary.FileName != string(snap.Raw) || snap.Meta.CycleID != string(snap.Raw) {
					errs <- fmt.Errorf("torn snapshot: file=%q meta=%q raw=%q",
						snap.Summary.FileName, snap.Meta.CycleID, snap.Raw)
					return
				}
			}
		}()
	}

	for v := 0; v < versions; v++ {
		name := fmt.Sprintf("v%d", v)
		s.PublishWith(&summary.Summary{FileName: name}, []byte(name), func(m *SyncMetadata) {
			m.CycleID = name
		})
	}
	close(stop)
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}

	if sum, _ := s.Read(); sum.FileName != fmt.Sprintf("v%d", versions-1) {
		t.Errorf("final FileName = %q", sum.FileName)
	}
}

func TestStore_PublishNilServesEmpty(t *testing.T) {
	s := New()
	s.Publish(nil, nil)
	if sum, _ := s.Read(); sum == nil || !sum.IsEmpty() {
		t.Error("Publish(nil) should serve the empty summary")
	}
}
