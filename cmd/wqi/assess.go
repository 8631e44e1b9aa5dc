package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/river-wqi-etl/internal/adapter/memory"
	"github.com/couchcryptid/river-wqi-etl/internal/domain"
	"github.com/couchcryptid/river-wqi-etl/internal/observability"
	"github.com/couchcryptid/river-wqi-etl/internal/pipeline"
	"github.com/spf13/cobra"
)

// assessCmd runs a file of monitoring records through the streaming
// transformer with an in-memory alert store.
func assessCmd() *cobra.Command {
	var (
		inputFile  string
		outputFile string
		validate   bool
		pending    bool
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Assess a file of monitoring records",
		Long: `Assess every record of a CSV, JSON array or JSONL file of DOE monitoring
rows (columns " ID STN (2016)", "SMP-DAT", "Time", "DO", "DO_SAT", "BOD",
"COD", "SS", "pH", "NH3N", "TEMP"). One assessment is written per line of
output; a summary goes to stderr.

Examples:
  wqi assess --file readings.csv
  wqi assess --file readings.jsonl --output assessments.jsonl --validate`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			records, err := loadRecords(inputFile)
			if err != nil {
				return fmt.Errorf("load records: %w", err)
			}

			out := cmd.OutOrStdout()
			if outputFile != "" {
				f, err := createOutput(outputFile)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			s, err := assessRecords(cmd.Context(), records, out, assessOptions{
				validateRanges: validate,
				autoAck:        !pending,
			}, logger)
			if err != nil {
				return err
			}
			s.print(cmd.ErrOrStderr())
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputFile, "file", "f", "", "Input file (.csv, .json or .jsonl)")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (JSONL format, default: stdout)")
	cmd.Flags().BoolVar(&validate, "validate", false, "Reject physically impossible values")
	cmd.Flags().BoolVar(&pending, "pending", false, "Leave alerts pending instead of recording them")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

type assessOptions struct {
	validateRanges bool
	autoAck        bool
}

// summary holds aggregated counts for the stderr report.
type summary struct {
	total    int
	rejected int
	classes  map[string]int
	alerts   map[string]int
	pending  int
}

func assessRecords(ctx context.Context, records []json.RawMessage, out io.Writer, opts assessOptions, logger *slog.Logger) (summary, error) {
	store := memory.NewStore()
	sessions := domain.NewSessions()
	// Metrics are collected but not exported by the CLI.
	transformer := pipeline.NewTransformer(sessions, domain.NewEvaluator(store, logger), nil, pipeline.TransformerOptions{
		ValidateRanges:  opts.validateRanges,
		AutoAcknowledge: opts.autoAck,
	}, observability.NewMetricsForTesting(), logger)

	s := summary{classes: map[string]int{}, alerts: map[string]int{}}
	stations := map[string]bool{}
	alertIDs := map[string]bool{}
	enc := json.NewEncoder(out)
	for i, rec := range records {
		s.total++
		a, err := transformer.Transform(ctx, domain.RawEvent{
			Value:     rec,
			Offset:    int64(i),
			Timestamp: time.Now().UTC(),
		})
		if err != nil {
			s.rejected++
			logger.Warn("record rejected", "row", i+1, "error", err)
			continue
		}

		stations[a.StationID] = true
		s.classes[a.Class.String()]++
		// A replayed reading carries the records of its first delivery again.
		for _, alert := range a.Alerts {
			if alertIDs[alert.ID] {
				continue
			}
			alertIDs[alert.ID] = true
			s.alerts[string(alert.Key.Parameter)]++
		}
		if err := enc.Encode(a); err != nil {
			return s, fmt.Errorf("write assessment: %w", err)
		}
	}

	for station := range stations {
		if sess, ok := sessions.Lookup(station); ok {
			s.pending += len(sess.Pending())
		}
	}
	return s, nil
}

func (s summary) print(w io.Writer) {
	fmt.Fprintf(w, "records: %d assessed, %d rejected\n", s.total-s.rejected, s.rejected)
	fmt.Fprintln(w, "classes:")
	for _, c := range []string{"I", "II", "III", "IV", "V"} {
		if n := s.classes[c]; n > 0 {
			fmt.Fprintf(w, "  %-4s %d\n", c, n)
		}
	}

	params := make([]string, 0, len(s.alerts))
	for p := range s.alerts {
		params = append(params, p)
	}
	sort.Strings(params)
	fmt.Fprintln(w, "alerts recorded:")
	for _, p := range params {
		fmt.Fprintf(w, "  %-4s %d\n", p, s.alerts[p])
	}
	if s.pending > 0 {
		fmt.Fprintf(w, "alerts pending: %d\n", s.pending)
	}
}

// loadRecords reads raw monitoring rows as JSON objects. CSV rows are keyed
// by their header columns.
func loadRecords(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return csvRecords(bytes.NewReader(data))
	case ".json":
		var recs []json.RawMessage
		if err := json.Unmarshal(data, &recs); err != nil {
			return nil, fmt.Errorf("decode json array: %w", err)
		}
		return recs, nil
	default:
		return jsonlRecords(bytes.NewReader(data))
	}
}

func csvRecords(r io.Reader) ([]json.RawMessage, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("no data rows")
	}

	header := rows[0]
	recs := make([]json.RawMessage, 0, len(rows)-1)
	for _, row := range rows[1:] {
		m := make(map[string]string, len(header))
		for i, h := range header {
			if i >= len(row) {
				break
			}
			m[columnKey(h)] = strings.TrimSpace(row[i])
		}
		b, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("marshal row: %w", err)
		}
		recs = append(recs, b)
	}
	return recs, nil
}

// columnKey maps a CSV header to the raw record key. The 2016 station id
// column keeps its leading space in the published sheets, but exports often
// trim it.
func columnKey(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	if strings.TrimSpace(h) == "ID STN (2016)" {
		return " ID STN (2016)"
	}
	return strings.TrimSpace(h)
}

func jsonlRecords(r io.Reader) ([]json.RawMessage, error) {
	var recs []json.RawMessage
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		if !json.Valid(b) {
			return nil, fmt.Errorf("line %d: invalid json", line)
		}
		recs = append(recs, json.RawMessage(bytes.Clone(b)))
	}
	return recs, sc.Err()
}

func createOutput(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.Create(path)
}
