// Command wqi computes water quality indices and alert bands offline, without
// Kafka or a running service.
//
// Usage:
//
//	wqi compute --do-mg-l 6 --temp 25 --bod 3 --cod 20 --ph 7 --an 0.2 --ss 40
//	wqi band --parameter pH --value 9.1
//	wqi assess --file readings.csv --output assessments.jsonl
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/river-wqi-etl/internal/domain"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "wqi",
		Short: "Compute river water quality indices and alert bands",
		Long: `Offline tools for the DOE water quality index: compute the WQI of a
single reading, band a raw parameter value, or assess a file of monitoring
records with the same rules as the streaming service.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(computeCmd())
	rootCmd.AddCommand(bandCmd())
	rootCmd.AddCommand(assessCmd())
	return rootCmd
}

// computeCmd assesses one reading given as flags.
func computeCmd() *cobra.Command {
	var (
		doMgL, doSat, temp   float64
		bod, cod, ph, an, ss float64
		validate             bool
	)

	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Compute the WQI of a single reading",
		Long: `Compute the sub-indices, WQI, class and status of one reading.

Exactly one of --do-mg-l or --do-sat is required; --do-mg-l also needs --temp.

Examples:
  wqi compute --do-mg-l 6 --temp 25 --bod 3 --cod 20 --ph 7 --an 0.2 --ss 40
  wqi compute --do-sat 88 --bod 1.5 --cod 9 --ph 7.4 --an 0.01 --ss 22`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			opt := func(name string, v float64) *float64 {
				if !flags.Changed(name) {
					return nil
				}
				return &v
			}

			r, err := domain.NewReading(domain.ReadingInput{
				StationID:       "cli",
				DOMgL:           opt("do-mg-l", doMgL),
				DOSatPercent:    opt("do-sat", doSat),
				TemperatureC:    opt("temp", temp),
				BOD:             opt("bod", bod),
				COD:             opt("cod", cod),
				PH:              opt("ph", ph),
				Ammonia:         opt("an", an),
				SuspendedSolids: opt("ss", ss),
			})
			if err != nil {
				return err
			}
			if validate {
				if err := domain.ValidateRanges(r); err != nil {
					return err
				}
			}

			res, err := domain.Assess(r)
			if err != nil {
				return err
			}
			return writeIndented(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().Float64Var(&doMgL, "do-mg-l", 0, "Dissolved oxygen in mg/L")
	cmd.Flags().Float64Var(&doSat, "do-sat", 0, "Dissolved oxygen in % saturation")
	cmd.Flags().Float64Var(&temp, "temp", 0, "Water temperature in °C")
	cmd.Flags().Float64Var(&bod, "bod", 0, "Biochemical oxygen demand in mg/L")
	cmd.Flags().Float64Var(&cod, "cod", 0, "Chemical oxygen demand in mg/L")
	cmd.Flags().Float64Var(&ph, "ph", 0, "pH")
	cmd.Flags().Float64Var(&an, "an", 0, "Ammoniacal nitrogen in mg/L")
	cmd.Flags().Float64Var(&ss, "ss", 0, "Suspended solids in mg/L")
	cmd.Flags().BoolVar(&validate, "validate", false, "Reject physically impossible values")

	return cmd
}

// bandCmd bands a raw parameter value.
func bandCmd() *cobra.Command {
	var (
		param string
		value float64
	)

	cmd := &cobra.Command{
		Use:   "band",
		Short: "Band a raw parameter value",
		Long: `Report the band (Excellent, Good, Moderate, Poor, Very Poor) of a raw
parameter value. Very Poor is the alert threshold.

Examples:
  wqi band --parameter pH --value 9.1
  wqi band --parameter DO --value 0.8`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := domain.ParseParameter(param)
			if err != nil {
				return err
			}
			b, err := domain.BandOf(p, value)
			if err != nil {
				return err
			}
			return writeIndented(cmd.OutOrStdout(), map[string]any{
				"parameter": p,
				"value":     value,
				"band":      b,
				"critical":  b.Critical(),
			})
		},
	}

	cmd.Flags().StringVarP(&param, "parameter", "p", "", "Parameter: pH, DO, COD, BOD, NH3N or SS")
	cmd.Flags().Float64VarP(&value, "value", "v", 0, "Raw value (DO in mg/L)")
	_ = cmd.MarkFlagRequired("parameter")
	_ = cmd.MarkFlagRequired("value")

	return cmd
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
