package service

import (
	"context"
	"sort"
	"time"

	"document-service/internal/apperr"
	"document-service/internal/metrics"
)

// Reconcile compares blob names in storage with those recorded in the asset
// store and reports both kinds of orphan. It changes nothing. Only one run
// may be in flight; a concurrent call fails with ErrConflict.
func (s *DocumentService) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	s.reconcileMu.Lock()
	if s.reconcileRunning {
		s.reconcileMu.Unlock()
		s.log.Warn("Reconciliation already running, skipping")
		return nil, apperr.New(apperr.ErrConflict, "reconciliation already in progress")
	}
	s.reconcileRunning = true
	s.reconcileMu.Unlock()

	defer func() {
		s.reconcileMu.Lock()
		s.reconcileRunning = false
		s.reconcileMu.Unlock()
	}()

	startedAt := s.now().UTC()
	s.log.Info("Reconciliation started")

	blobs, err := s.blobs.List(ctx, "")
	if err != nil {
		return nil, err
	}
	records, err := s.assets.ListBlobReferences(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrMetadata, err, "failed to list recorded blob names")
	}

	inStorage := make(map[string]struct{}, len(blobs))
	for _, name := range blobs {
		inStorage[name] = struct{}{}
	}
	// owned covers variant blobs too; only originals count as record orphans.
	owned := make(map[string]struct{}, len(records))
	originals := make(map[string]struct{}, len(records))
	for _, ref := range records {
		if ref.BlobName != "" {
			owned[ref.BlobName] = struct{}{}
			originals[ref.BlobName] = struct{}{}
		}
		for _, url := range ref.VariantURLs {
			owned[url] = struct{}{}
		}
	}

	report := &ReconcileReport{
		StartedAt:       startedAt,
		BlobsScanned:    len(blobs),
		RecordsScanned:  len(records),
		OrphanedBlobs:   []string{},
		OrphanedRecords: []string{},
	}
	for name := range inStorage {
		if _, ok := owned[name]; !ok {
			report.OrphanedBlobs = append(report.OrphanedBlobs, name)
		}
	}
	for name := range originals {
		if _, ok := inStorage[name]; !ok {
			report.OrphanedRecords = append(report.OrphanedRecords, name)
		}
	}
	sort.Strings(report.OrphanedBlobs)
	sort.Strings(report.OrphanedRecords)
	report.CompletedAt = s.now().UTC()

	metrics.ReconcileRunsTotal.Inc()
	metrics.ReconcileDurationSeconds.Observe(time.Since(startedAt).Seconds())
	metrics.ReconcileIssuesTotal.WithLabelValues("orphaned_blob").Add(float64(len(report.OrphanedBlobs)))
	metrics.ReconcileIssuesTotal.WithLabelValues("orphaned_record").Add(float64(len(report.OrphanedRecords)))

	s.log.Info("Reconciliation completed",
		"blobs_scanned", report.BlobsScanned,
		"records_scanned", report.RecordsScanned,
		"orphaned_blobs", len(report.OrphanedBlobs),
		"orphaned_records", len(report.OrphanedRecords),
	)
	return report, nil
}
