// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/OCAP2/collision-benchmark/internal/util"
	"github.com/OCAP2/collision-benchmark/pkg/core"
)

// ReportVersion is bumped on incompatible report changes.
const ReportVersion = 1

// Report is the root JSON structure of an exported run
type Report struct {
	Version  int             `json:"version"`
	Run      *core.Run       `json:"run"`
	Summary  *core.Summary   `json:"summary"`
	Outliers []WorldOutliers `json:"outliers"`
	Failures []core.Failure  `json:"failures"`
}

// WorldOutliers counts how often a world voted with the minority.
type WorldOutliers struct {
	World  string `json:"world"`
	Engine string `json:"engine"`
	Count  int    `json:"count"`
}

// exportJSON writes the run report to a (gzipped) JSON file
func (b *Backend) exportJSON() error {
	report := b.buildReport()

	stem := util.JoinNames(b.run.Model1, b.run.Model2)
	timestamp := b.run.StartTime.Format("20060102_150405")

	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("%s_%s.json.gz", stem, timestamp)
	} else {
		filename = fmt.Sprintf("%s_%s.json", stem, timestamp)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if b.cfg.CompressOutput {
		if err := writeGzipJSON(outputPath, report); err != nil {
			return err
		}
	} else {
		if err := writeJSON(outputPath, report); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildReport() Report {
	report := Report{
		Version:  ReportVersion,
		Run:      b.run,
		Summary:  b.summary,
		Outliers: make([]WorldOutliers, 0),
		Failures: make([]core.Failure, 0, len(b.failures)),
	}
	report.Failures = append(report.Failures, b.failures...)

	counts := make(map[string]*WorldOutliers)
	for _, f := range b.failures {
		minorityColliding := f.Positive < f.Negative
		for _, v := range f.Votes {
			o, ok := counts[v.World]
			if !ok {
				o = &WorldOutliers{World: v.World, Engine: v.Engine}
				counts[v.World] = o
			}
			// ties count against both sides
			if f.Positive == f.Negative || v.Colliding == minorityColliding {
				o.Count++
			}
		}
	}
	for _, o := range counts {
		report.Outliers = append(report.Outliers, *o)
	}
	sort.Slice(report.Outliers, func(i, j int) bool {
		if report.Outliers[i].Count != report.Outliers[j].Count {
			return report.Outliers[i].Count > report.Outliers[j].Count
		}
		return report.Outliers[i].World < report.Outliers[j].World
	})

	return report
}

func writeJSON(path string, data Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func writeGzipJSON(path string, data Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer gzWriter.Close()

	encoder := json.NewEncoder(gzWriter)
	return encoder.Encode(data)
}

// ReadReport loads an exported report, gzipped or not.
func ReadReport(path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var dec *json.Decoder
	if filepath.Ext(path) == ".gz" {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		dec = json.NewDecoder(gz)
	} else {
		dec = json.NewDecoder(f)
	}

	var r Report
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return &r, nil
}
