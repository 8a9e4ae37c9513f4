// Package match converts Hamming distances into calibrated confidence scores
// and classifies extracted images against a project's expected components.
//
// Each candidate image is scored against every component's reference hashes
// and assigned to the highest-confidence component above threshold, with
// deterministic tie-breaking (lowest distance, then declaration order). Best
// scores inside the review band below the threshold are classified
// low-confidence and held in an ordered queue for manual disposition; the
// matcher never promotes them on its own.
package match
