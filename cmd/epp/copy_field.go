package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"limsepp/internal/epp"
	"limsepp/pkg/field"
)

var (
	copyFieldPID       string
	copyFieldSource    string
	copyFieldDest      string
	copyFieldChangelog string
)

var copyFieldCmd = &cobra.Command{
	Use:   "copy-field",
	Short: "Copy a UDF from a process onto the projects of its input samples",
	Long: `copy-field reads a UDF from the process the step ran on and writes
its value onto every project reachable through the process inputs. A project
already carrying the value is left untouched; every actual change is logged
to the changelog.`,
	RunE: runCopyField,
}

func init() {
	copyFieldCmd.Flags().StringVar(&copyFieldPID, "pid", "", "LIMS id of the process")
	copyFieldCmd.Flags().StringVar(&copyFieldSource, "source-udf", "", "name of the UDF to read from the process")
	copyFieldCmd.Flags().StringVar(&copyFieldDest, "dest-udf", "", "name of the UDF to write (default: same as --source-udf)")
	copyFieldCmd.Flags().StringVar(&copyFieldChangelog, "changelog", "", "changelog file recording every value change")
	_ = copyFieldCmd.MarkFlagRequired("pid")
	_ = copyFieldCmd.MarkFlagRequired("source-udf")
}

func runCopyField(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.close()
	log := env.runlog.Logger

	changelog, err := env.openChangelog(ctx, copyFieldChangelog)
	if err != nil {
		return err
	}
	if changelog != nil {
		defer func() { _ = changelog.Close() }()
	}

	proc, err := env.client.Process(ctx, copyFieldPID)
	if err != nil {
		return err
	}
	projects, err := env.client.ProjectsForProcess(ctx, proc)
	if err != nil {
		return err
	}
	log.Info("resolved destinations",
		zap.String("process", proc.ID()),
		zap.Int("projects", len(projects)))

	dsts := make([]field.Entity, len(projects))
	for i, p := range projects {
		dsts[i] = p
	}
	runner := epp.NewRunner(changelog, log)
	if err := runner.CopyToAll(ctx, proc, copyFieldSource, copyFieldDest, dsts); err != nil {
		if field.IsFatalPersist(err) {
			log.Error("write rejected", zap.String("udf", copyFieldSource), zap.Error(err))
		}
		return err
	}
	attachChangelog(changelog, copyFieldPID, log)

	// The LIMS shows the last stderr line to the operator.
	fmt.Fprintln(os.Stderr, runner.Abstract("project"))
	return nil
}
