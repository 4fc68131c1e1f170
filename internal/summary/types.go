// Package summary folds classified file paths into per-directory type counts
// and encodes the result for caching against a snapshot identity.
package summary

// CurrentVersion tags every encoded payload. A stored payload is reusable only
// when its version matches.
const CurrentVersion int64 = 1

// RootDir is the directory key for files at the top of the tree.
const RootDir = ""

// FileClassification is what a classifier reports for one path.
// An empty TypeLabel means the file could not be classified.
type FileClassification struct {
	TypeLabel    string
	DisplayLabel string
}

// Classifier maps a file path to its classification. It never fails; unknown
// content yields an empty TypeLabel.
type Classifier interface {
	Classify(path string) FileClassification
}

// ClassifierFunc adapts a plain function to Classifier.
type ClassifierFunc func(path string) FileClassification

func (f ClassifierFunc) Classify(path string) FileClassification { return f(path) }

// PerTypeCount is the number of files of one type plus the label shown for it.
// DisplayLabel comes from the first file of that type seen for the directory.
type PerTypeCount struct {
	Count        int64  `json:"count" yaml:"count"`
	DisplayLabel string `json:"display_name" yaml:"display_name"`
}

// DirectoryCounts maps a type label to its count within one directory.
type DirectoryCounts map[string]PerTypeCount

// Result is the full summary for one snapshot.
type Result struct {
	Version     int64                      `json:"version" yaml:"version"`
	Directories map[string]DirectoryCounts `json:"summaries" yaml:"summaries"`
}

// NewResult returns an empty result stamped with CurrentVersion.
func NewResult() Result {
	return Result{
		Version:     CurrentVersion,
		Directories: map[string]DirectoryCounts{},
	}
}

// add increments dir/typeLabel by n, seeding the label on first touch.
func add(dirs map[string]DirectoryCounts, dir, typeLabel, display string, n int64) {
	counts, ok := dirs[dir]
	if !ok {
		counts = DirectoryCounts{}
		dirs[dir] = counts
	}
	ent, ok := counts[typeLabel]
	if !ok {
		ent = PerTypeCount{DisplayLabel: display}
	}
	ent.Count += n
	counts[typeLabel] = ent
}
