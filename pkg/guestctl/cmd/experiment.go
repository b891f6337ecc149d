package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/guest-quantum/guestctl/pkg/guestctl/client"
	"github.com/guest-quantum/guestctl/pkg/guestctl/output"
)

const (
	defaultTwoQubitExperiment = "tq_experiments/default_tq_experiment.json"
	experimentInfoTimeLayout  = "2006-01-02T15-04-05"
	experimentInfoSuffix      = "_tq_experiment.json"
)

func NewExperimentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "experiment",
		Aliases: []string{"exp"},
		Short:   "Submit experiments to the GUEST backend",
	}
	cmd.AddCommand(
		newExperimentQASMCommand(),
		newRemoteExperimentCommand("rabi", "Run a Rabi oscillation on the remote hardware",
			"Rabi oscillation experiment", (*client.ExperimentService).RunRabi),
		newRemoteExperimentCommand("calibrate", "Run a calibration on the remote hardware",
			"Calibration", (*client.ExperimentService).RunCalibration),
		newRemoteExperimentCommand("two-qubit", "Run the two-qubit circuit on the remote hardware",
			"Two-qubit circuit", (*client.ExperimentService).RunTwoQubitCircuit),
		newExperimentTwoQubitBatchCommand(),
	)
	return cmd
}

func newExperimentQASMCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "qasm FILE",
		Short: "Simulate an OpenQASM circuit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if _, err := os.Stat(args[0]); err != nil {
				return fmt.Errorf("qasm file: %w", err)
			}
			apiClient, err := buildClient(cmd.Context(), rt)
			if err != nil {
				return err
			}
			resp, err := apiClient.Experiments().SimulateQASM(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeSubmitted(rt, "QASM simulation", resp)
		},
	}
}

type submitFunc func(*client.ExperimentService, context.Context) (*client.SubmitResponse, error)

func newRemoteExperimentCommand(use, short, label string, submit submitFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			apiClient, err := buildClient(cmd.Context(), rt)
			if err != nil {
				return err
			}
			resp, err := submit(apiClient.Experiments(), cmd.Context())
			if err != nil {
				return err
			}
			return writeSubmitted(rt, label, resp)
		},
	}
}

func writeSubmitted(rt *runtimeState, label string, resp *client.SubmitResponse) error {
	return writeOutput(rt, resp, func(w io.Writer, _ output.Format) {
		output.WriteSubmitted(w, label, resp)
	})
}

type batchSubmission struct {
	Message  string          `json:"message"`
	InfoPath string          `json:"info_path"`
	Tasks    json.RawMessage `json:"task_infos"`
}

func newExperimentTwoQubitBatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "two-qubit-batch [FILE]",
		Short: "Submit a batch of two-qubit experiments",
		Long: "Submit a batch of two-qubit experiments described by FILE (default " + defaultTwoQubitExperiment + ").\n" +
			"The returned task infos are saved under the experiment infos directory for 'guestctl job batch-download'.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			path := defaultTwoQubitExperiment
			if len(args) == 1 {
				path = args[0]
			}
			experiment, err := readExperiment(path)
			if err != nil {
				return err
			}
			apiClient, err := buildClient(cmd.Context(), rt)
			if err != nil {
				return err
			}
			resp, err := apiClient.Experiments().SubmitTwoQubitBatch(cmd.Context(), experiment)
			if err != nil {
				return err
			}
			infoPath, err := saveExperimentInfos(rt, resp.TaskInfos)
			if err != nil {
				return err
			}
			result := batchSubmission{Message: resp.Message, InfoPath: infoPath, Tasks: resp.TaskInfos}
			return writeOutput(rt, result, func(w io.Writer, _ output.Format) {
				_, _ = fmt.Fprintln(w, resp.Message)
				_, _ = fmt.Fprintf(w, "Task infos saved to %s\n", infoPath)
				_, _ = fmt.Fprintf(w, "Use 'guestctl job batch-download %s' to fetch the results\n", filepath.Base(infoPath))
			})
		},
	}
}

func readExperiment(path string) (json.RawMessage, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read experiment file: %w", err)
	}
	if !json.Valid(content) {
		return nil, fmt.Errorf("invalid JSON in experiment file %s", path)
	}
	return json.RawMessage(content), nil
}

// saveExperimentInfos writes the submitted task infos to a timestamped file in the
// experiment infos directory and returns its path.
func saveExperimentInfos(rt *runtimeState, infos json.RawMessage) (string, error) {
	dir := rt.Settings().ExperimentInfosDir
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create experiment infos dir: %w", err)
	}
	name := rt.Clock().Now().Format(experimentInfoTimeLayout) + experimentInfoSuffix
	path := filepath.Join(dir, name)

	var buf bytes.Buffer
	if len(infos) == 0 {
		infos = json.RawMessage("{}")
	}
	if err := json.Indent(&buf, infos, "", "  "); err != nil {
		return "", fmt.Errorf("invalid task infos in response: %w", err)
	}
	buf.WriteByte('\n')
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return "", fmt.Errorf("failed to save task infos: %w", err)
	}
	rt.Logger().Debugw("Saved experiment infos", "path", path)
	return path, nil
}
