package deps

import "testing"

func TestCheckBinariesMissing(t *testing.T) {
	statuses := CheckBinaries([]Requirement{
		{Name: "missing", Command: "definitely-not-a-real-binary-xyz"},
		{Name: "unset", Command: ""},
	})
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[0].Available {
		t.Fatal("expected missing binary to be unavailable")
	}
	if statuses[0].Detail == "" {
		t.Fatal("expected detail for missing binary")
	}
	if statuses[1].Available || statuses[1].Detail != "command not configured" {
		t.Fatalf("unexpected status for unset command: %+v", statuses[1])
	}
}

func TestCheckBinariesPresent(t *testing.T) {
	// sh is present on every platform the engine targets.
	statuses := CheckBinaries([]Requirement{{Name: "shell", Command: "sh"}})
	if !statuses[0].Available {
		t.Fatalf("expected sh to be available: %+v", statuses[0])
	}
}

func TestRequirementsCoverBothTools(t *testing.T) {
	reqs := Requirements(nil)
	if len(reqs) != 2 {
		t.Fatalf("expected 2 requirements, got %d", len(reqs))
	}
	names := map[string]bool{}
	for _, r := range reqs {
		names[r.Name] = true
		if !r.Optional {
			t.Errorf("%s should be optional (fallback renderer exists)", r.Name)
		}
	}
	if !names["pdfimages"] || !names["pdftoppm"] {
		t.Fatalf("unexpected requirement names: %v", names)
	}
}
