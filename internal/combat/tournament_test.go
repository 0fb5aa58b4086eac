package combat

import "testing"

func TestSeriesTrackerRecordWinAccumulatesPerAddress(t *testing.T) {
	tr := NewSeriesTracker(3)

	wins, over := tr.RecordWin("0xaaa")
	if wins != 1 || over {
		t.Fatalf("got wins=%d over=%v, want 1/false", wins, over)
	}

	wins, over = tr.RecordWin("0xaaa")
	if wins != 2 || over {
		t.Fatalf("got wins=%d over=%v after 2nd win, want 2/false", wins, over)
	}
}

func TestSeriesTrackerDecidesSeriesAtMajority(t *testing.T) {
	tr := NewSeriesTracker(3) // best of 3 needs 2 wins

	tr.RecordWin("0xaaa")
	wins, over := tr.RecordWin("0xaaa")
	if wins != 2 || !over {
		t.Fatalf("got wins=%d over=%v, want 2/true", wins, over)
	}
}

func TestSeriesTrackerIgnoresEmptyWinner(t *testing.T) {
	tr := NewSeriesTracker(3)
	wins, over := tr.RecordWin("")
	if wins != 0 || over {
		t.Fatalf("got wins=%d over=%v, want 0/false", wins, over)
	}
	if len(tr.Score()) != 0 {
		t.Fatalf("expected no recorded scores for an empty winner")
	}
}

func TestSeriesTrackerScoreIsASnapshot(t *testing.T) {
	tr := NewSeriesTracker(5)
	tr.RecordWin("0xaaa")
	snap := tr.Score()
	tr.RecordWin("0xaaa")
	if snap["0xaaa"] != 1 {
		t.Fatalf("snapshot should not observe later writes, got %d", snap["0xaaa"])
	}
}

func TestNewSeriesTrackerClampsBestOfToAtLeastOne(t *testing.T) {
	tr := NewSeriesTracker(0)
	wins, over := tr.RecordWin("0xaaa")
	if wins != 1 || !over {
		t.Fatalf("best-of-1 should decide on the first win, got wins=%d over=%v", wins, over)
	}
}
