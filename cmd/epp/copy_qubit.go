package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"limsepp/internal/epp"
	"limsepp/internal/qubit"
)

var (
	copyQubitPID       string
	copyQubitFile      string
	copyQubitChangelog string
)

var copyQubitCmd = &cobra.Command{
	Use:   "copy-qubit",
	Short: "Copy Qubit concentrations from the uploaded result file onto input artifacts",
	Long: `copy-qubit parses the Qubit CSV export uploaded as a shared result
file of the process, normalizes every reading to ng/ul, and writes
Concentration, Conc. Units, and QC Flag onto the matching input artifact.
Readings the instrument flagged as out of range fail QC instead of getting a
number.`,
	RunE: runCopyQubit,
}

func init() {
	copyQubitCmd.Flags().StringVar(&copyQubitPID, "pid", "", "LIMS id of the process")
	copyQubitCmd.Flags().StringVar(&copyQubitFile, "file", "Qubit Result File", "name of the shared result file artifact")
	copyQubitCmd.Flags().StringVar(&copyQubitChangelog, "changelog", "", "changelog file recording every value change")
	_ = copyQubitCmd.MarkFlagRequired("pid")
}

func runCopyQubit(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.close()
	log := env.runlog.Logger

	changelog, err := env.openChangelog(ctx, copyQubitChangelog)
	if err != nil {
		return err
	}
	if changelog != nil {
		defer func() { _ = changelog.Close() }()
	}

	proc, err := env.client.Process(ctx, copyQubitPID)
	if err != nil {
		return err
	}
	resultFile, err := env.client.SharedResultFile(ctx, proc, copyQubitFile)
	if err != nil {
		return err
	}
	rc, err := epp.FetchResultFile(ctx, func(ctx context.Context) (io.ReadCloser, error) {
		return env.client.OpenResultFile(ctx, resultFile)
	}, env.store, resultFile.ID())
	if err != nil {
		return err
	}
	measurements, err := qubit.ParseReport(rc)
	_ = rc.Close()
	if err != nil {
		return err
	}
	analytes, err := env.client.InputAnalytes(ctx, proc)
	if err != nil {
		return err
	}
	log.Info("parsed result file",
		zap.String("artifact", resultFile.ID()),
		zap.Int("measurements", len(measurements)),
		zap.Int("analytes", len(analytes)))

	byName := make(map[string]qubit.Measurement, len(measurements))
	for _, m := range measurements {
		byName[m.Sample] = m
	}

	// One pair list per UDF; a row only contributes the fields it produced,
	// so out-of-range readings update QC Flag without touching Concentration.
	var concPairs, unitPairs, flagPairs []epp.CopyPair
	unmatched := 0
	for _, art := range analytes {
		m, ok := byName[art.Name()]
		if !ok {
			log.Warn("no measurement for artifact", zap.String("artifact", art.ID()), zap.String("name", art.Name()))
			unmatched++
			continue
		}
		res, err := qubit.Normalize(m)
		if err != nil {
			log.Warn("skipping unusable measurement", zap.String("artifact", art.ID()), zap.Error(err))
			unmatched++
			continue
		}
		src := res.Entity(m.Sample)
		if res.Concentration.Present() {
			concPairs = append(concPairs, epp.CopyPair{Source: src, Destination: art})
		}
		if res.Units.Present() {
			unitPairs = append(unitPairs, epp.CopyPair{Source: src, Destination: art})
		}
		flagPairs = append(flagPairs, epp.CopyPair{Source: src, Destination: art})
	}

	runner := epp.NewRunner(changelog, log)
	for _, batch := range []struct {
		udf   string
		pairs []epp.CopyPair
	}{
		{qubit.UDFConcentration, concPairs},
		{qubit.UDFUnits, unitPairs},
		{qubit.UDFQCFlag, flagPairs},
	} {
		if err := runner.CopyPairs(ctx, batch.udf, "", batch.pairs); err != nil {
			log.Error("write rejected", zap.String("udf", batch.udf), zap.Error(err))
			return err
		}
	}
	attachChangelog(changelog, copyQubitPID, log)

	abstract := runner.Abstract("udf value")
	if unmatched > 0 {
		abstract += fmt.Sprintf(" %d artifact(s) had no usable measurement.", unmatched)
	}
	fmt.Fprintln(os.Stderr, abstract)
	return nil
}
