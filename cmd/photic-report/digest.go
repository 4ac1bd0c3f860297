package main

import (
	"bufio"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/urfave/cli/v3"
)

const (
	// Window and cluster lists make long videos produce long lines.
	maxRecordSize = 16 * 1024 * 1024

	riskiestShown = 5
	redacted      = "(redacted)"
)

var errDigestArgs = errors.New("expected exactly one argument: path to report.jsonl")

// Severity and risk labels, most serious first.
//
//nolint:gochecknoglobals
var (
	severityOrder = []string{"severe", "moderate", "mild"}
	riskOrder     = []string{"high", "medium", "low"}
)

// detailSection names the analysis section that explains each check.
//
//nolint:gochecknoglobals
var detailSection = map[string]string{
	"flash-rate":     "flashes",
	"red-flash":      "peaks",
	"flicker":        "spectral",
	"pattern":        "peaks",
	"color-contrast": "contrast",
	"psi":            "peaks",
}

func digestCommand() *cli.Command {
	return &cli.Command{
		Name:      "digest",
		Usage:     "Summarize a photic JSONL report",
		ArgsUsage: "<report.jsonl>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "issue",
				Usage: "List the files flagged by one check (e.g., flash-rate, flicker)",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return errDigestArgs
			}

			return runDigest(cmd.Args().First(), cmd.String("issue"))
		},
	}
}

func runDigest(reportPath, check string) error {
	file, err := os.Open(reportPath) //nolint:gosec // CLI tool opens user-specified report files
	if err != nil {
		return fmt.Errorf("opening report: %w", err)
	}
	defer file.Close()

	summary, err := loadDigest(file)
	if err != nil {
		return err
	}

	summary.render(os.Stdout)

	if check != "" {
		summary.renderCheck(os.Stdout, check)
	}

	return nil
}

// digestRecord is the part of a report line the digest reads.
type digestRecord struct {
	File     string          `json:"file,omitempty"`
	Analysis json.RawMessage `json:"analysis,omitempty"`
	Error    string          `json:"error,omitempty"`
}

type digestAnalysis struct {
	Summary struct {
		Risk          string  `json:"risk"`
		IssueCount    int     `json:"issue_count"`
		WorstSeverity string  `json:"worst_severity"`
		Duration      float64 `json:"duration_sec"`
	} `json:"summary"`
	Peaks struct {
		PSI              float64 `json:"psi"`
		FlashesPerSecond int     `json:"flashes_per_second"`
	} `json:"peaks"`
	Issues []struct {
		Check      string  `json:"check"`
		Detected   bool    `json:"detected"`
		Severity   string  `json:"severity"`
		Summary    string  `json:"summary"`
		Confidence float64 `json:"confidence"`
	} `json:"issues"`
}

// finding is one detected issue in one file, with the analysis section explaining it.
type finding struct {
	file       string
	severity   string
	summary    string
	confidence float64
	section    json.RawMessage
}

// fileRisk ranks analyzed files.
type fileRisk struct {
	file             string
	risk             string
	psi              float64
	flashesPerSecond int
}

// digest aggregates a report, one record at a time.
type digest struct {
	records  int
	failed   int
	duration float64

	risks      map[string]int
	worst      map[string]int
	issueCount map[int]int
	findings   map[string][]finding
	files      []fileRisk
}

func newDigest() *digest {
	return &digest{
		risks:      map[string]int{},
		worst:      map[string]int{},
		issueCount: map[int]int{},
		findings:   map[string][]finding{},
	}
}

func loadDigest(reader io.Reader) (*digest, error) {
	summary := newDigest()

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 1024*1024), maxRecordSize)

	for scanner.Scan() {
		summary.add(scanner.Bytes())
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}

	return summary, nil
}

// add folds one report line in. Lines that do not decode count as failed files.
func (d *digest) add(line []byte) {
	d.records++

	var (
		record   digestRecord
		analysis digestAnalysis
		sections map[string]json.RawMessage
	)

	if json.Unmarshal(line, &record) != nil || record.Error != "" || len(record.Analysis) == 0 ||
		json.Unmarshal(record.Analysis, &analysis) != nil ||
		json.Unmarshal(record.Analysis, &sections) != nil {
		d.failed++

		return
	}

	name := cmp.Or(record.File, redacted)

	d.duration += analysis.Summary.Duration
	d.risks[analysis.Summary.Risk]++
	d.issueCount[analysis.Summary.IssueCount]++

	if slices.Contains(severityOrder, analysis.Summary.WorstSeverity) {
		d.worst[analysis.Summary.WorstSeverity]++
	} else {
		d.worst["clean"]++
	}

	d.files = append(d.files, fileRisk{
		file:             name,
		risk:             analysis.Summary.Risk,
		psi:              analysis.Peaks.PSI,
		flashesPerSecond: analysis.Peaks.FlashesPerSecond,
	})

	for _, issue := range analysis.Issues {
		if !issue.Detected {
			continue
		}

		d.findings[issue.Check] = append(d.findings[issue.Check], finding{
			file:       name,
			severity:   issue.Severity,
			summary:    issue.Summary,
			confidence: issue.Confidence,
			section:    sections[detailSection[issue.Check]],
		})
	}
}

func (d *digest) analyzed() int {
	return d.records - d.failed
}

// riskiest returns the analyzed files by decreasing risk, then peak PSI.
func (d *digest) riskiest(limit int) []fileRisk {
	ranked := slices.Clone(d.files)

	slices.SortStableFunc(ranked, func(a, b fileRisk) int {
		return cmp.Or(
			cmp.Compare(rank(riskOrder, a.risk), rank(riskOrder, b.risk)),
			cmp.Compare(b.psi, a.psi),
		)
	})

	return ranked[:min(limit, len(ranked))]
}

// checks returns the detected checks, most findings first.
func (d *digest) checks() []string {
	names := make([]string, 0, len(d.findings))
	for name := range d.findings {
		names = append(names, name)
	}

	slices.SortFunc(names, func(a, b string) int {
		return cmp.Or(cmp.Compare(len(d.findings[b]), len(d.findings[a])), cmp.Compare(a, b))
	})

	return names
}

func (d *digest) render(out io.Writer) {
	table := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintln(table, "=== Photic Report Digest ===")
	fmt.Fprintln(table)
	fmt.Fprintf(table, "Files:\t%d\n", d.records)
	fmt.Fprintf(table, "Analyzed:\t%d of %d files (%.0f s of video)\n", d.analyzed(), d.records, d.duration)
	fmt.Fprintf(table, "Failed:\t%d\n", d.failed)
	fmt.Fprintln(table)

	fmt.Fprintln(table, "Risk\tfiles")

	for _, level := range riskOrder {
		fmt.Fprintf(table, "  %s\t%d\n", level, d.risks[level])
	}

	fmt.Fprintln(table)
	fmt.Fprintln(table, "Worst severity\tfiles")

	for _, severity := range append(slices.Clone(severityOrder), "clean") {
		fmt.Fprintf(table, "  %s\t%d\n", severity, d.worst[severity])
	}

	fmt.Fprintln(table)
	fmt.Fprintln(table, "Issues per file\tfiles")

	counts := make([]int, 0, len(d.issueCount))
	for count := range d.issueCount {
		counts = append(counts, count)
	}

	slices.Sort(counts)

	for _, count := range counts {
		fmt.Fprintf(table, "  %d\t%d\n", count, d.issueCount[count])
	}

	if checks := d.checks(); len(checks) > 0 {
		fmt.Fprintln(table)
		fmt.Fprintln(table, "Check\tfiles\tsevere\tmoderate\tmild")

		for _, check := range checks {
			tally := map[string]int{}
			for _, found := range d.findings[check] {
				tally[found.severity]++
			}

			fmt.Fprintf(table, "  %s\t%d\t%d\t%d\t%d\n",
				check, len(d.findings[check]), tally["severe"], tally["moderate"], tally["mild"])
		}
	}

	if riskiest := d.riskiest(riskiestShown); len(riskiest) > 0 {
		fmt.Fprintln(table)
		fmt.Fprintln(table, "Riskiest files\trisk\tpeak psi\tflashes/s")

		for _, file := range riskiest {
			fmt.Fprintf(table, "  %s\t%s\t%.2f\t%d\n", file.file, file.risk, file.psi, file.flashesPerSecond)
		}
	}

	_ = table.Flush()
}

// renderCheck lists the files flagged by check, most severe first, with the fields of the
// analysis section that explains it.
func (d *digest) renderCheck(out io.Writer, check string) {
	found := slices.Clone(d.findings[check])

	fmt.Fprintln(out)

	if len(found) == 0 {
		fmt.Fprintf(out, "No files affected by %s\n", check)

		return
	}

	slices.SortStableFunc(found, func(a, b finding) int {
		return cmp.Or(
			cmp.Compare(rank(severityOrder, a.severity), rank(severityOrder, b.severity)),
			cmp.Compare(b.confidence, a.confidence),
		)
	})

	fmt.Fprintf(out, "=== %s: %d files ===\n", check, len(found))

	for _, entry := range found {
		fmt.Fprintf(out, "\n  %s\n", entry.file)
		fmt.Fprintf(out, "    %s, %.0f%% confidence: %s\n", entry.severity, entry.confidence*100, entry.summary)

		for _, line := range sectionFields(entry.section) {
			fmt.Fprintf(out, "    %s\n", line)
		}
	}
}

// sectionFields flattens an analysis section to sorted "key: value" lines. Lists are
// reported by length.
func sectionFields(section json.RawMessage) []string {
	var fields map[string]json.RawMessage
	if len(section) == 0 || json.Unmarshal(section, &fields) != nil {
		return nil
	}

	lines := make([]string, 0, len(fields))

	for key, raw := range fields {
		var list []json.RawMessage

		value := string(raw)
		if json.Unmarshal(raw, &list) == nil {
			value = fmt.Sprintf("%d entries", len(list))
		} else {
			var text string
			if json.Unmarshal(raw, &text) == nil {
				value = text
			}
		}

		lines = append(lines, key+": "+value)
	}

	slices.Sort(lines)

	return lines
}

// rank is the position of label in order, unknown labels last.
func rank(order []string, label string) int {
	if index := slices.Index(order, label); index >= 0 {
		return index
	}

	return len(order)
}
