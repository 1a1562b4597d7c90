package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"bepreport/internal/bep"

	"github.com/spf13/cobra"
)

func newGenerateCmd() *cobra.Command {
	var (
		targets     int
		failureRate float64
	)

	cmd := &cobra.Command{
		Use:          "generate <output-file>",
		Short:        "Generate a synthetic varint-framed BEP file for testing",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if failureRate < 0 || failureRate > 1 {
				return fmt.Errorf("failure-rate must be between 0 and 1, got %g", failureRate)
			}
			if targets <= 0 {
				return fmt.Errorf("targets must be positive, got %d", targets)
			}
			failures, err := generateFixture(args[0], targets, failureRate)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated %s: %d targets, %d failures\n", args[0], targets, failures)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&targets, "targets", 1000, "number of targets to generate")
	flags.Float64Var(&failureRate, "failure-rate", 0.05, "fraction of targets that fail")

	return cmd
}

// generateFixture writes a varint-framed BEP file with a mix of build and
// test events at the requested failure rate. Fixture generation lives here,
// never in the aggregation path.
func generateFixture(path string, targets int, failureRate float64) (int, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create fixture file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)

	write := func(body string) error {
		return bep.WriteFrame(w, []byte(body))
	}

	if err := write(`{"started": {"startTimeMillis": "1642000000000"}}`); err != nil {
		return 0, err
	}

	every := 0
	if failureRate > 0 {
		every = int(1 / failureRate)
	}

	failures := 0
	for i := 0; i < targets; i++ {
		fails := every > 0 && i%every == 0
		if fails {
			failures++
		}

		label := fmt.Sprintf("//pkg%04d:target%06d", i/50, i)
		var body string
		if i%2 == 0 {
			body = buildEventBody(label, !fails, i)
		} else {
			body = testEventBody(label, !fails, i)
		}
		if err := write(body); err != nil {
			return 0, err
		}
	}

	if err := write(`{"finished": {"finishTimeMillis": "1642000120000"}}`); err != nil {
		return 0, err
	}

	if err := w.Flush(); err != nil {
		return 0, fmt.Errorf("flush fixture file: %w", err)
	}
	return failures, nil
}

// Realistic per-language compile errors, with file paths and line numbers the
// annotation renderer can surface.
var buildErrorTemplates = []string{
	"%s/main.cpp:%d:15: error: use of undeclared identifier 'undefined_var_%d'",
	"%s/utils.h:%d:8: error: 'missing_function_%d' was not declared in this scope",
	"%s/parser.cc:%d:12: error: no matching function for call to 'parse_%d'",
	"%s/BUILD:%d:1: name 'undefined_dependency_%d' is not defined",
	"%s/config.py:%d:5: SyntaxError: invalid syntax near 'broken_code_%d'",
	"%s/lib.java:%d:20: error: cannot find symbol variable missing_var_%d",
}

var testErrorTemplates = []string{
	"%s/test_main.py:%d:12: AssertionError: expected %d but got a different value",
	"%s/unit_tests.cpp:%d:8: EXPECT_EQ failed for case %d",
	"%s/integration_test.java:%d:15: AssertionFailedError: test failed at step %d",
	"%s/test_utils.go:%d:5: panic: runtime error: index out of range [%d]",
}

func buildEventBody(label string, success bool, index int) string {
	if success {
		return fmt.Sprintf(
			`{"id": {"targetCompleted": {"label": "%s"}}, "completed": {"success": true}}`, label)
	}

	message := formatErrorTemplate(buildErrorTemplates[index%len(buildErrorTemplates)], label, index)
	return fmt.Sprintf(
		`{"id": {"targetCompleted": {"label": "%s"}}, "completed": {"success": false}, "aborted": {"reason": "BUILD_FAILED", "description": "%s"}}`,
		label, message)
}

func testEventBody(label string, success bool, index int) string {
	if success {
		return fmt.Sprintf(
			`{"id": {"testResult": {"label": "%s"}}, "testResult": {"status": "PASSED", "testAttemptDurationMillis": "%d"}}`,
			label, 200+index%4000)
	}

	message := formatErrorTemplate(testErrorTemplates[index%len(testErrorTemplates)], label, index)
	return fmt.Sprintf(
		`{"id": {"testResult": {"label": "%s"}}, "testResult": {"status": "FAILED", "testAttemptDurationMillis": "1000"}, "testFailureMessage": "%s"}`,
		label, message)
}

func formatErrorTemplate(template, label string, index int) string {
	pkg := strings.TrimPrefix(label, "//")
	if idx := strings.IndexByte(pkg, ':'); idx >= 0 {
		pkg = pkg[:idx]
	}

	line := 20 + index%90
	return fmt.Sprintf(template, pkg, line, index)
}
