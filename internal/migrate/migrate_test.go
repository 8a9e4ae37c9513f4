package migrate

import (
	"image"
	"image/color"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"

	"meeple/internal/extraction"
	"meeple/internal/imagehash"
	"meeple/internal/match"
)

func saveGray(t *testing.T, path string, value func(x, y int) uint8) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.SetGray(x, y, color.Gray{Y: value(x, y)})
		}
	}
	if err := imaging.Save(imaging.Clone(img), path); err != nil {
		t.Fatal(err)
	}
	return path
}

func uniformGray(t *testing.T, dir, name string) string {
	return saveGray(t, filepath.Join(dir, name), func(int, int) uint8 { return 128 })
}

// verticalGradient has no horizontal structure at all: dhash sees it as
// identical to a flat image, while blockhash splits it down the middle.
func verticalGradient(t *testing.T, dir, name string) string {
	return saveGray(t, filepath.Join(dir, name), func(_, y int) uint8 { return uint8(y * 4) })
}

func asImages(paths ...string) []extraction.Image {
	images := make([]extraction.Image, 0, len(paths))
	for i, p := range paths {
		images = append(images, extraction.Image{
			SourcePage: i + 1,
			Origin:     extraction.OriginEmbedded,
			Format:     "png",
			Path:       p,
		})
	}
	return images
}

func TestCompareDetectsClassificationFlip(t *testing.T) {
	dir := t.TempDir()
	ref := uniformGray(t, dir, "ref.png")
	gradient := verticalGradient(t, dir, "gradient.png")

	report, err := New().Compare(Request{
		Images: asImages(gradient),
		Components: []Component{
			{Name: "Board", ReferencePaths: []string{ref}},
		},
		Current:   AlgorithmPair{Algorithm: imagehash.AlgorithmDHash},
		Candidate: AlgorithmPair{Algorithm: imagehash.AlgorithmBlockhash},
		Policy:    match.DefaultPolicy(),
	})
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}

	if len(report.CurrentResults) != 1 || len(report.CandidateResults) != 1 {
		t.Fatalf("expected one result per pass, got %d/%d", len(report.CurrentResults), len(report.CandidateResults))
	}
	if got := report.CurrentResults[0].Status; got != match.StatusMatched {
		t.Fatalf("dhash pass status = %s, want matched", got)
	}
	if got := report.CandidateResults[0].Status; got == match.StatusMatched {
		t.Fatal("blockhash pass should not match the vertical gradient against flat gray")
	}

	if len(report.Changes) != 1 || report.Unchanged != 0 {
		t.Fatalf("expected exactly one change, got %+v", report)
	}
	change := report.Changes[0]
	if change.FromStatus != match.StatusMatched || change.ToStatus == match.StatusMatched {
		t.Fatalf("change direction wrong: %+v", change)
	}
	if change.ConfidenceDelta >= 0 {
		t.Fatalf("confidence should drop under blockhash, delta = %f", change.ConfidenceDelta)
	}
	if change.SourcePage != 1 || change.Origin != extraction.OriginEmbedded {
		t.Fatalf("change lost candidate identity: %+v", change)
	}
}

func TestCompareCountsStableOutcomes(t *testing.T) {
	dir := t.TempDir()
	ref := uniformGray(t, dir, "ref.png")
	same := uniformGray(t, dir, "candidate.png")

	report, err := New().Compare(Request{
		Images: asImages(same),
		Components: []Component{
			{Name: "Board", ReferencePaths: []string{ref}},
		},
		Current:   AlgorithmPair{Algorithm: imagehash.AlgorithmDHash},
		Candidate: AlgorithmPair{Algorithm: imagehash.AlgorithmBlockhash},
		Policy:    match.DefaultPolicy(),
	})
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if len(report.Changes) != 0 || report.Unchanged != 1 {
		t.Fatalf("identical outcomes must not diff: %+v", report)
	}
}

func TestCompareIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	ref := uniformGray(t, dir, "ref.png")
	gradient := verticalGradient(t, dir, "gradient.png")

	req := Request{
		Images: asImages(gradient, ref),
		Components: []Component{
			{Name: "Board", ReferencePaths: []string{ref}},
		},
		Current:   AlgorithmPair{Algorithm: imagehash.AlgorithmDHash},
		Candidate: AlgorithmPair{Algorithm: imagehash.AlgorithmBlockhash},
		Policy:    match.DefaultPolicy(),
	}
	first, err := New().Compare(req)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, err := New().Compare(req)
		if err != nil {
			t.Fatal(err)
		}
		if len(again.Changes) != len(first.Changes) || again.Unchanged != first.Unchanged {
			t.Fatalf("run %d diverged: %+v vs %+v", i, again, first)
		}
		for j := range again.CurrentResults {
			if again.CurrentResults[j].HammingDistance != first.CurrentResults[j].HammingDistance {
				t.Fatalf("run %d distance diverged at %d", i, j)
			}
		}
	}
}

func TestCompareRequestValidation(t *testing.T) {
	dir := t.TempDir()
	ref := uniformGray(t, dir, "ref.png")
	images := asImages(ref)
	pair := AlgorithmPair{Algorithm: imagehash.AlgorithmDHash}

	tests := []struct {
		name    string
		req     Request
		wantErr string
	}{
		{
			name:    "no images",
			req:     Request{Current: pair, Candidate: AlgorithmPair{Algorithm: imagehash.AlgorithmBlockhash}},
			wantErr: "no images",
		},
		{
			name: "same pair",
			req: Request{
				Images:     images,
				Components: []Component{{Name: "Board", ReferencePaths: []string{ref}}},
				Current:    pair,
				Candidate:  pair,
			},
			wantErr: "against itself",
		},
		{
			name: "missing references",
			req: Request{
				Images:     images,
				Components: []Component{{Name: "Board"}},
				Current:    pair,
				Candidate:  AlgorithmPair{Algorithm: imagehash.AlgorithmBlockhash},
			},
			wantErr: "no reference images",
		},
		{
			name: "unknown algorithm",
			req: Request{
				Images:     images,
				Components: []Component{{Name: "Board", ReferencePaths: []string{ref}}},
				Current:    AlgorithmPair{Algorithm: "ahash"},
				Candidate:  AlgorithmPair{Algorithm: imagehash.AlgorithmBlockhash},
			},
			wantErr: "ahash",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Compare(tt.req)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
