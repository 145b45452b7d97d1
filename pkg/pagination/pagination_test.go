package pagination

import "testing"

func TestNormalizeClampsBounds(t *testing.T) {
	p := Normalize(0, 500)
	if p.Page != DefaultPage || p.Limit != MaxLimit || p.Offset != 0 {
		t.Fatalf("unexpected params: %+v", p)
	}

	p = Normalize(3, 0)
	if p.Limit != DefaultLimit || p.Offset != 2*DefaultLimit {
		t.Fatalf("unexpected params: %+v", p)
	}
}

func TestNewMetaRoundsPagesUp(t *testing.T) {
	meta := Normalize(1, 20).NewMeta(41)
	if meta.TotalPages != 3 {
		t.Fatalf("expected 3 pages, got %d", meta.TotalPages)
	}
	if Normalize(1, 20).NewMeta(0).TotalPages != 0 {
		t.Fatalf("expected 0 pages for empty result")
	}
}
