// Package main provides the bepreport CLI: it summarizes Bazel Build Event
// Protocol files into CI annotations.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"bepreport/internal/aggregate"
	"bepreport/internal/annotate"
	"bepreport/internal/bep"
	"bepreport/internal/config"
	"bepreport/internal/render"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:     "bepreport",
	Short:   "Summarize Bazel build event streams as CI status annotations",
	Version: version,
}

func init() {
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newGenerateCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "bepreport: %v\n", err)
		os.Exit(1)
	}
}

// ErrFailuresFound signals a completed analysis that found build or test
// failures. Callers translate it to a non-zero exit status.
var ErrFailuresFound = errors.New("build failures found")

func newAnalyzeCmd() *cobra.Command {
	var (
		configPath         string
		skipIfAbsent       bool
		maxFileSizeMB      int
		maxFailures        int
		maxAnnotationBytes int
		outputFormat       string
		contextID          string
		jobName            string
		verbose            bool
	)

	cmd := &cobra.Command{
		Use:          "analyze [bep-file]",
		Short:        "Aggregate a build event file and emit a status report",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			// Flags override the config file when set explicitly.
			flags := cmd.Flags()
			if flags.Changed("skip-if-absent") {
				cfg.SkipIfAbsent = skipIfAbsent
			}
			if flags.Changed("max-file-size-mb") {
				cfg.MaxFileSizeMB = maxFileSizeMB
			}
			if flags.Changed("max-failures") {
				cfg.MaxFailures = maxFailures
			}
			if flags.Changed("max-annotation-size") {
				cfg.MaxAnnotationBytes = maxAnnotationBytes
			}
			if flags.Changed("output-format") {
				cfg.OutputFormat = outputFormat
			}
			if flags.Changed("context") {
				cfg.Context = contextID
			}
			if flags.Changed("job-name") {
				cfg.JobName = jobName
			}
			if flags.Changed("verbose") {
				cfg.Verbose = verbose
			}
			if len(args) == 1 {
				cfg.BEPFile = args[0]
			}

			return runAnalyze(cmd, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "", "path to a YAML plugin configuration file")
	flags.BoolVar(&skipIfAbsent, "skip-if-absent", false, "exit successfully when the BEP file does not exist")
	flags.IntVar(&maxFileSizeMB, "max-file-size-mb", 100, "largest BEP file size to read, in megabytes")
	flags.IntVar(&maxFailures, "max-failures", 50, "maximum number of failure details to include")
	flags.IntVar(&maxAnnotationBytes, "max-annotation-size", 1024*1024, "maximum rendered annotation size in bytes")
	flags.StringVar(&outputFormat, "output-format", "annotation", "output format: text, json, or annotation")
	flags.StringVar(&contextID, "context", "bazel-failures", "annotation context id shared across jobs")
	flags.StringVar(&jobName, "job-name", "build", "job display name used for appended annotation sections")
	flags.BoolVar(&verbose, "verbose", false, "enable debug logging")

	return cmd
}

func runAnalyze(cmd *cobra.Command, cfg *config.Config) error {
	logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose)
	out := cmd.OutOrStdout()

	report, err := analyzeFile(cfg, logger, out)
	if err != nil {
		if errors.Is(err, errSkipped) {
			return nil
		}
		return err
	}

	if err := emit(cmd, cfg, logger, report); err != nil {
		return err
	}

	if report.FailCount > 0 {
		return fmt.Errorf("%w: %d", ErrFailuresFound, report.FailCount)
	}
	return nil
}

var errSkipped = errors.New("analysis skipped")

// analyzeFile decodes and aggregates the BEP file. An absent file is either
// a skip (per configuration) or an error; an empty file yields a zero-valued
// report.
func analyzeFile(cfg *config.Config, logger zerolog.Logger, out io.Writer) (aggregate.Report, error) {
	info, err := os.Stat(cfg.BEPFile)
	if err != nil {
		if os.IsNotExist(err) {
			if cfg.SkipIfAbsent {
				logger.Info().Str("path", cfg.BEPFile).Msg("BEP file not found, skipping analysis")
				return aggregate.Report{}, errSkipped
			}
			return aggregate.Report{}, fmt.Errorf("BEP file not found: %s", cfg.BEPFile)
		}
		return aggregate.Report{}, fmt.Errorf("stat BEP file: %w", err)
	}

	if cfg.Verbose {
		fmt.Fprintf(out, "Analyzing BEP file: %s (%d bytes)\n", cfg.BEPFile, info.Size())
	}

	file, err := os.Open(cfg.BEPFile)
	if err != nil {
		return aggregate.Report{}, fmt.Errorf("open BEP file: %w", err)
	}
	defer file.Close()

	state := aggregate.New(aggregate.Limits{
		MaxFailureNotes: cfg.MaxFailures,
		MaxMessageBytes: 5000,
	})

	var reader io.Reader = file
	maxBytes := int64(cfg.MaxFileSizeMB) * 1024 * 1024
	if maxBytes > 0 && info.Size() > maxBytes {
		logger.Warn().Int64("size", info.Size()).Int64("limit", maxBytes).
			Msg("BEP file exceeds size limit, reading a prefix")
		state.AddWarning(fmt.Sprintf(
			"Input truncated: BEP file is %d MB, limit is %d MB.",
			info.Size()/(1024*1024), cfg.MaxFileSizeMB))
		reader = io.LimitReader(file, maxBytes)
	}

	format, reader, err := bep.DetectFormat(reader)
	if err != nil {
		return aggregate.Report{}, err
	}
	logger.Debug().Str("format", string(format)).Msg("detected input format")

	decoder, err := bep.NewDecoder(format, logger)
	if err != nil {
		return aggregate.Report{}, err
	}

	if err := decoder.Decode(reader, func(event bep.Event) error {
		state.Step(event)
		return nil
	}); err != nil {
		return aggregate.Report{}, fmt.Errorf("decode %s: %w", cfg.BEPFile, err)
	}

	return state.Finalize(), nil
}

func emit(cmd *cobra.Command, cfg *config.Config, logger zerolog.Logger, report aggregate.Report) error {
	out := cmd.OutOrStdout()

	switch cfg.OutputFormat {
	case "text":
		return render.Text(out, report, render.TextOptions{})
	case "json":
		return render.JSON(out, report)
	case "annotation", "":
		return emitAnnotation(cmd, cfg, logger, report)
	default:
		return fmt.Errorf("unsupported output format: %s", cfg.OutputFormat)
	}
}

func emitAnnotation(cmd *cobra.Command, cfg *config.Config, logger zerolog.Logger, report aggregate.Report) error {
	out := cmd.OutOrStdout()
	document := render.Markdown(report, cfg.MaxAnnotationBytes)

	if !annotate.RunningUnderAgent() {
		logger.Debug().Msg("not running under the CI agent, writing annotation to stdout")
		_, err := io.WriteString(out, document)
		return err
	}

	style := annotate.StyleInfo
	if report.FailCount > 0 {
		style = annotate.StyleError
	}

	controller := annotate.NewController(
		annotate.AgentMetadataStore{},
		annotate.RetrySink{Inner: annotate.AgentSink{}, Logger: logger},
		cfg.Context, cfg.JobName, logger,
	)

	if err := controller.Publish(cmd.Context(), document, style); err != nil {
		// The computed document is still valid: dump it to stdout so no
		// work is lost, then surface the posting failure.
		logger.Error().Err(err).Msg("posting annotation failed, dumping to stdout")
		if _, werr := io.WriteString(out, document); werr != nil {
			return werr
		}
		return err
	}
	return nil
}

func newLogger(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w}).Level(level).With().Timestamp().Logger()
}
