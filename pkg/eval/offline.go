package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/wilhg/qreplay/pkg/hardware"
	"github.com/wilhg/qreplay/pkg/replay"
)

// Fixture is a self-contained regression case: a corpus, the device it was
// recorded on and a capture to replay against it.
type Fixture struct {
	Capture
	Device hardware.Descriptor `json:"device"`
	Corpus json.RawMessage     `json:"corpus"`
}

// Summary aggregates the reports of a fixture directory.
type Summary struct {
	Reports []Report
	Total   int
	Passed  int
}

// Score is Passed/Total across all fixtures, or 1 when there is nothing to run.
func (s Summary) Score() float64 {
	if s.Total == 0 {
		return 1
	}
	return float64(s.Passed) / float64(s.Total)
}

// Details flattens the mismatch details of every report.
func (s Summary) Details() []string {
	var out []string
	for _, r := range s.Reports {
		out = append(out, r.Details...)
	}
	return out
}

// EvaluateFixtures loads fixtures from an fs.FS directory (json files), builds
// a fresh replay backend per fixture and replays its capture.
func EvaluateFixtures(ctx context.Context, fsys fs.FS, dir string, opts ...replay.Option) (Summary, error) {
	fixtures, err := LoadFixtures(fsys, dir)
	if err != nil {
		return Summary{}, err
	}
	var sum Summary
	for _, fx := range fixtures {
		b, err := replay.New(fx.Corpus, fx.Device, opts...)
		if err != nil {
			return Summary{}, fmt.Errorf("fixture %s: %w", fx.Name, err)
		}
		rep, err := ReplayCapture(ctx, b, fx.Capture)
		if err != nil {
			return Summary{}, fmt.Errorf("fixture %s: %w", fx.Name, err)
		}
		sum.Reports = append(sum.Reports, rep)
		sum.Total += rep.Total
		sum.Passed += rep.Passed
	}
	return sum, nil
}

// LoadFixtures reads every .json file in dir, in directory order.
func LoadFixtures(fsys fs.FS, dir string) ([]Fixture, error) {
	var out []Fixture
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		b, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		var fx Fixture
		if err := json.Unmarshal(b, &fx); err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		if fx.Name == "" {
			fx.Name = strings.TrimSuffix(e.Name(), ".json")
		}
		out = append(out, fx)
	}
	return out, nil
}
