package metrics

import (
	"math"
	"testing"
	"time"
)

func TestRecordEditor(t *testing.T) {
	before := TotalPairs()
	RecordEditor("rotate_segments", 8, 12*time.Millisecond)
	RecordEditor("substitute_object", 4, 5*time.Millisecond)
	if got := TotalPairs() - before; got != 12 {
		t.Errorf("TotalPairs delta = %d, want 12", got)
	}
}

func TestRecordRejection(t *testing.T) {
	RecordRejectionDraws(1)
	RecordRejectionDraws(42)
	RecordRejectionExhausted()
}

func TestRecordTokenizeBatch(t *testing.T) {
	RecordTokenizeBatch(64)
	RecordTokenizeBatch(127)
}

func TestRecordPatchScore(t *testing.T) {
	RecordPatchScore(0.5, false)
	RecordPatchScore(1.7, false)  // unstable but recorded
	RecordPatchScore(-0.2, false) // unstable but recorded
	RecordPatchScore(math.NaN(), true)
}

func TestRecordDataError(t *testing.T) {
	RecordDataError("label_not_found")
	RecordDataError("insufficient_data")
}

func TestRecordForwardAndGrids(t *testing.T) {
	RecordForward(30 * time.Millisecond)
	RecordGridExport(3)
}
