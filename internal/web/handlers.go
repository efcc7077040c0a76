package web

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/proddash/internal/core"
	"github.com/JonMunkholm/proddash/internal/logging"
	"github.com/JonMunkholm/proddash/internal/snapshot"
)

// handleHealth reports liveness. It is not password protected and never
// fails because of sync state.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	meta := s.service.GetSyncStatus()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"has_data":     meta.LastSuccess != nil,
		"stale":        meta.Stale(),
		"last_success": meta.LastSuccess,
	})
}

// handleAuthVerify lets the frontend check a password. Reaching it means the
// gate accepted the credentials.
func (s *Server) handleAuthVerify(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "authenticated",
		"message": "Authentication successful",
	})
}

// handleSummary serves GET /api/summary?basis=&week=.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.serveSummary(w, r, q.Get("basis"), q.Get("week"))
}

// handleBasis serves the fixed-basis shortcuts /api/quantity and /api/style-count.
func (s *Server) handleBasis(basis string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.serveSummary(w, r, basis, r.URL.Query().Get("week"))
	}
}

func (s *Server) serveSummary(w http.ResponseWriter, r *http.Request, basis, week string) {
	mode, err := core.ParseMode(basis, week)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	view, err := s.service.GetSummary(mode)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type syncStatusResponse struct {
	snapshot.SyncMetadata
	Stale           bool `json:"stale"`
	IntervalSeconds int  `json:"interval_seconds"`
}

// handleSyncStatus serves GET /api/sync-status. next_scheduled comes from the
// scheduler's ticker and is null when the scheduler is not running.
func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	meta := s.service.GetSyncStatus()
	writeJSON(w, http.StatusOK, syncStatusResponse{
		SyncMetadata:    meta,
		Stale:           meta.Stale(),
		IntervalSeconds: s.cfg.Sync.IntervalSeconds,
	})
}

// handleSheets lists the worksheets of the published workbook, which helps
// when a renamed sheet breaks the sync.
func (s *Server) handleSheets(w http.ResponseWriter, r *http.Request) {
	sheets := s.service.Sheets()
	exists := func(name string) bool {
		for _, sh := range sheets {
			if sh == name {
				return true
			}
		}
		return false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"file_name":          s.cfg.Sync.FileName,
		"sheets":             sheets,
		"quantity_sheet":     s.cfg.Sync.QuantitySheet,
		"style_sheet":        s.cfg.Sync.StyleSheet,
		"quantity_sheet_ok":  exists(s.cfg.Sync.QuantitySheet),
		"style_sheet_ok":     s.cfg.Sync.StyleSheet == "" || exists(s.cfg.Sync.StyleSheet),
		"published_workbook": len(sheets) > 0,
	})
}

type refreshPending struct {
	Status     core.RefreshStatus `json:"status"`
	InProgress bool               `json:"in_progress"`
}

// handleRefresh serves POST /api/refresh[?wait=true].
//
// Without wait the cycle starts in the background and the answer is 202.
// With wait the handler blocks until the cycle finishes, bounded by the
// request timeout; a cycle that outlives the bound is reported as in progress.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	logger := logging.WithFields(r.Context(), "wait", wait)

	if !wait {
		resp, err := s.service.RequestRefresh(r.Context(), false)
		if err != nil {
			respondError(w, r, err, statusFor(err))
			return
		}
		logger.Info("refresh requested", "status", resp.Status)
		writeJSON(w, http.StatusAccepted, resp)
		return
	}

	if err := s.waiters.Acquire(r.Context()); err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	defer s.waiters.Release()

	bound := s.cfg.Server.RequestTimeout
	// The server write timeout may be shorter than a full cycle.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Now().Add(bound + 5*time.Second))

	ctx, cancel := context.WithTimeout(r.Context(), bound)
	defer cancel()

	resp, err := s.service.RequestRefresh(ctx, true)
	switch {
	case err == nil:
		logger.Info("refresh completed", "status", resp.Status, "cycle_id", resp.Result.CycleID)
		writeJSON(w, http.StatusOK, resp)
	case resp.Result == nil && ctx.Err() != nil:
		logger.Info("refresh still running after wait bound", "bound", bound.String())
		writeJSON(w, http.StatusAccepted, refreshPending{Status: resp.Status, InProgress: true})
	default:
		respondError(w, r, err, statusFor(err))
	}
}

// handleExport serves the raw workbook the current summary was built from.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	file, err := s.service.Export()
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	etag := `"` + file.ContentHash + `"`
	w.Header().Set("ETag", etag)
	if file.ContentHash != "" && r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", contentTypeFor(file.Name))
	w.Header().Set("Content-Disposition", contentDisposition(file.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Data)
}

func contentTypeFor(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".csv":
		return "text/csv; charset=utf-8"
	}
	return "application/octet-stream"
}

// contentDisposition builds an attachment header with an ASCII fallback name
// and the RFC 5987 UTF-8 name for clients that support it.
func contentDisposition(name string) string {
	var ascii strings.Builder
	for _, r := range name {
		if r >= 0x20 && r < 0x7f && r != '"' && r != '\\' {
			ascii.WriteRune(r)
		}
	}
	fallback := strings.TrimSpace(ascii.String())
	if fallback == "" || strings.HasPrefix(fallback, ".") {
		fallback = "workbook" + path.Ext(name)
	}
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, fallback, encodeRFC5987(name))
}

// encodeRFC5987 percent-encodes everything outside attr-char.
func encodeRFC5987(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAttrChar(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isAttrChar(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("!#$&+-.^_`|~", c) >= 0
}
