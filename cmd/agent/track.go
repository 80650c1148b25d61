package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hperssn/focusflow/internal/collector"
	"github.com/hperssn/focusflow/internal/config"
	"github.com/hperssn/focusflow/internal/domain"
	"github.com/hperssn/focusflow/internal/logging"
	"github.com/hperssn/focusflow/internal/reporter"
)

var (
	trackSubject  string
	trackEmail    string
	trackName     string
	trackInterval time.Duration
	trackAudioDir string
	trackLogLevel string
)

func init() {
	trackCmd.Flags().StringVar(&trackSubject, "subject", "", "identity provider subject (required)")
	trackCmd.Flags().StringVar(&trackEmail, "email", "", "account email (required)")
	trackCmd.Flags().StringVar(&trackName, "name", "", "display name (required)")
	trackCmd.Flags().DurationVar(&trackInterval, "interval", reporter.DefaultInterval, "report interval")
	trackCmd.Flags().StringVar(&trackAudioDir, "audio-dir", os.TempDir(), "where spoken feedback is written")
	trackCmd.Flags().StringVar(&trackLogLevel, "log-level", "warn", "log level")
	_ = trackCmd.MarkFlagRequired("subject")
	_ = trackCmd.MarkFlagRequired("email")
	_ = trackCmd.MarkFlagRequired("name")
}

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Start or resume a session and report events read from stdin",
	Long: `Start or resume a focus session and report metrics until stdin closes.

Each stdin line is one event: key, press, move, scroll, hidden or visible.
"reset" clears the metrics and "end" ends the session.

Examples:
  # Pipe events from another tool
  event-source | focusflow-agent track --subject auth0|123 --email me@example.com --name Me`,
	RunE: runTrack,
}

func runTrack(cmd *cobra.Command, args []string) error {
	logger, err := logging.New(config.LoggingConfig{Level: trackLogLevel, Format: "console"})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := reporter.NewClient(serverURL, 10*time.Second)

	user, err := client.Login(ctx, domain.Identity{Subject: trackSubject, Email: trackEmail, Name: trackName})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	sess, err := client.StartSession(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "session %s started for %s\n", sess.ID, user.Name)

	col := collector.New(collector.DefaultConfig())
	rep := reporter.New(client, col.Snapshots(), logger,
		reporter.WithInterval(trackInterval),
		reporter.WithPlayer(newFilePlayer(trackAudioDir, cmd.OutOrStdout())),
		reporter.WithResultHandler(func(res reporter.Result) {
			printResult(cmd.OutOrStdout(), res)
		}),
	)
	rep.SetIdentity(user.ID, sess.ID)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return col.Run(gctx) })
	g.Go(func() error { return rep.Run(gctx) })

	if err := col.SetActive(gctx, true); err != nil {
		return err
	}

	endRequested, err := feedEvents(gctx, cmd.InOrStdin(), col)
	cancel()
	if werr := g.Wait(); werr != nil && !errors.Is(werr, context.Canceled) {
		logger.Warn("agent loop stopped", zap.Error(werr))
	}
	if err != nil {
		return err
	}

	if endRequested {
		ended, err := client.EndSession(context.Background(), sess.ID)
		if err != nil {
			return fmt.Errorf("end session: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "session ended: %ds, average %.0f\n", ended.DurationSec, ended.AverageScore)
	}
	return nil
}

// feedEvents forwards stdin lines to the collector until input ends, "end" is
// read or ctx is cancelled.
func feedEvents(ctx context.Context, in io.Reader, col *collector.Collector) (bool, error) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return false, nil
		case line, ok := <-lines:
			if !ok {
				return false, nil
			}
			switch line {
			case "":
			case "end":
				return true, nil
			case "reset":
				if err := col.Reset(ctx); err != nil {
					return false, nil
				}
			default:
				kind, ok := collector.ParseKind(line)
				if !ok {
					continue
				}
				col.Observe(kind)
			}
		}
	}
}

func printResult(w io.Writer, res reporter.Result) {
	fmt.Fprintf(w, "focus %.0f (%s)\n", res.FocusScore, res.FocusLabel)
	if res.AIMessage != "" {
		fmt.Fprintf(w, "  coach: %s\n", res.AIMessage)
	}
}
