package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/divijg19/lakecross/internal/analytics"
	"github.com/divijg19/lakecross/internal/cloud"
	"github.com/divijg19/lakecross/internal/config"
	"github.com/divijg19/lakecross/internal/core"
	"github.com/divijg19/lakecross/internal/storage"
)

func newSessionsCmd(a *app) *cobra.Command {
	var (
		won, lost bool
		order     string
		desc      bool
		limit     int
	)
	cmd := &cobra.Command{
		Use:     "sessions [id]",
		Aliases: []string{"s"},
		Short:   "List recorded games or show one with its move log",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeDB, err := a.openStore()
			if err != nil {
				return fmt.Errorf("sessions: %w", err)
			}
			defer closeDB()

			if len(args) == 1 {
				return showSession(cmd.Context(), cmd.OutOrStdout(), st, args[0])
			}

			if won && lost {
				return errors.New("sessions: --won and --lost are exclusive")
			}
			by, ok := storage.ParseOrder(order)
			if !ok {
				return fmt.Errorf("sessions: invalid order %q (moves or time)", order)
			}
			q := storage.Query{OrderBy: by, Descending: desc}
			if won || lost {
				q.Won = &won
			}
			return pageSessions(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), st, q, limit)
		},
	}
	cmd.Flags().BoolVar(&won, "won", false, "only won games")
	cmd.Flags().BoolVar(&lost, "lost", false, "only lost games")
	cmd.Flags().StringVar(&order, "order", "time", "sort by moves or time")
	cmd.Flags().BoolVar(&desc, "desc", true, "newest or longest first")
	cmd.Flags().IntVar(&limit, "limit", 10, "sessions per page")
	return cmd
}

// pageSessions shows a paginated list with the [n]ext/[p]rev/[q]uit prompt.
func pageSessions(ctx context.Context, in io.Reader, out io.Writer, st *storage.Store, q storage.Query, pageSize int) error {
	if pageSize < 1 {
		pageSize = 10
	}
	reader := bufio.NewReader(in)
	page := 0

	for {
		q.Limit = pageSize
		q.Offset = page * pageSize
		list, err := st.QuerySessions(ctx, q)
		if err != nil {
			return fmt.Errorf("sessions: %w", err)
		}

		if len(list) == 0 {
			if page == 0 {
				fmt.Fprintln(out, "No games yet. Run: lakecross play")
				return nil
			}
			page--
			continue
		}

		fmt.Fprintf(out, "Page %d\n", page+1)
		printSessionTable(out, list)

		fmt.Fprint(out, "[n]ext, [p]rev, [q]uit: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return nil
			}
			return fmt.Errorf("sessions: read: %w", err)
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "q":
			return nil
		case "p":
			if page > 0 {
				page--
			}
		default:
			if len(list) == pageSize {
				page++
			}
		}
	}
}

func printSessionTable(out io.Writer, list []core.SessionRecord) {
	now := time.Now().UTC()
	fmt.Fprintf(out, "%-36s %-8s %-9s %-20s %s\n", "ID", "RESULT", "CROSSINGS", "STARTED", "MISTAKES")
	for _, rec := range list {
		fmt.Fprintf(out, "%-36s %-8s %-9d %-20s %d\n",
			rec.ID,
			sessionResult(rec),
			rec.MoveCount,
			formatRelative(rec.StartTime, now),
			len(rec.Mistakes),
		)
	}
}

func showSession(ctx context.Context, out io.Writer, st *storage.Store, id string) error {
	rec, err := st.GetSession(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("sessions: no session %s", id)
	}
	if err != nil {
		return fmt.Errorf("sessions: %w", err)
	}

	now := time.Now().UTC()
	fmt.Fprintf(out, "%s  %s  (crossings: %d)\n", rec.ID, sessionResult(rec), rec.MoveCount)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "META")
	fmt.Fprintf(out, "Started:  %s (%s)\n", formatShortUTC(rec.StartTime), formatRelative(rec.StartTime, now))
	if rec.EndTime != nil {
		fmt.Fprintf(out, "Ended:    %s (%s)\n", formatShortUTC(*rec.EndTime), formatRelative(*rec.EndTime, now))
	}
	if rec.DurationSeconds != nil {
		fmt.Fprintf(out, "Duration: %s\n", time.Duration(*rec.DurationSeconds*float64(time.Second)).Round(time.Second))
	}
	if rec.FinalState != "" {
		fmt.Fprintf(out, "Final:    %s\n", rec.FinalState)
	}
	if len(rec.Mistakes) > 0 {
		labels := make([]string, 0, len(rec.Mistakes))
		for _, m := range rec.Mistakes {
			labels = append(labels, m.Label())
		}
		fmt.Fprintf(out, "Mistakes: %s\n", strings.Join(labels, ", "))
	}

	if len(rec.Moves) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "MOVES")
		for _, m := range rec.Moves {
			what := string(m.Op)
			if m.Kind != "" {
				what += " " + string(m.Kind)
			}
			fmt.Fprintf(out, "%3d  %-16s %s\n", m.Seq, what, m.State)
		}
	}
	return nil
}

func newBestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "best",
		Short: "Show the fewest crossings among won games",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, closeDB, err := a.openStore()
			if err != nil {
				return fmt.Errorf("best: %w", err)
			}
			defer closeDB()

			best, ok, err := st.BestScore(cmd.Context())
			if err != nil {
				return fmt.Errorf("best: %w", err)
			}
			out := cmd.OutOrStdout()
			if !ok {
				fmt.Fprintln(out, "No wins yet.")
				return nil
			}
			optimal := a.cfg.Rules.OptimalCrossings
			if best <= optimal {
				fmt.Fprintf(out, "Best: %d crossings (optimal)\n", best)
			} else {
				fmt.Fprintf(out, "Best: %d crossings (optimal is %d)\n", best, optimal)
			}
			// Seen now; the notice stays quiet until it improves again.
			st.DidBestScoreChange(cmd.Context(), best)
			return nil
		},
	}
}

func newRecentCmd(a *app) *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Show the most recent games",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, closeDB, err := a.openStore()
			if err != nil {
				return fmt.Errorf("recent: %w", err)
			}
			defer closeDB()

			list, err := st.RecentSessions(cmd.Context(), n)
			if err != nil {
				return fmt.Errorf("recent: %w", err)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No games yet. Run: lakecross play")
				return nil
			}
			printSessionTable(cmd.OutOrStdout(), list)
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "count", "n", 5, "number of games")
	return cmd
}

// analyticsSource picks the record source: the local store, an NDJSON file, or a gs:// object.
func (a *app) analyticsSource(ctx context.Context, from string) (analytics.Source, func(), error) {
	switch {
	case from == "":
		st, closeDB, err := a.openStore()
		if err != nil {
			return nil, nil, err
		}
		return st, closeDB, nil
	case strings.HasPrefix(from, "gs://"):
		bucket, object, err := cloud.ParseURL(from)
		if err != nil {
			return nil, nil, err
		}
		m, err := cloud.NewMirror(ctx, bucket, object, a.cfg.Cloud.CredentialsFile)
		if err != nil {
			return nil, nil, err
		}
		return m, func() { _ = m.Close() }, nil
	default:
		return analytics.FileSource{Path: from}, func() {}, nil
	}
}

func newAnalyticsCmd(a *app) *cobra.Command {
	var (
		from   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:     "analytics",
		Aliases: []string{"stats"},
		Short:   "Summarize every recorded game",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			src, closeSrc, err := a.analyticsSource(ctx, from)
			if err != nil {
				return fmt.Errorf("analytics: %w", err)
			}
			defer closeSrc()

			svc := analytics.NewService(src, a.cfg.Rules.OptimalCrossings,
				analytics.WithFetchTimeout(config.FetchTimeout(a.cfg)),
				analytics.WithLogger(a.logger),
			)
			sum, err := svc.Summary(ctx)
			if err != nil {
				return fmt.Errorf("analytics: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(sum)
			}
			printSummary(out, sum)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "read sessions from an NDJSON file or gs://bucket/object instead of the local store")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")
	return cmd
}

func printSummary(out io.Writer, sum core.AnalyticsSummary) {
	fmt.Fprintln(out, styles.Title.Render("Game analytics"))
	fmt.Fprintf(out, "Games:             %d (%d finished, %d in progress)\n", sum.TotalGames, sum.CompletedGames, sum.ActiveGames)
	fmt.Fprintf(out, "Wins:              %d (%.1f%%)\n", sum.Wins, sum.SuccessRatePercent)
	fmt.Fprintf(out, "Optimal solutions: %d\n", sum.OptimalSolutionCount)
	fmt.Fprintf(out, "Avg crossings/win: %.1f\n", sum.AverageMovesPerWin)
	fmt.Fprintf(out, "Avg duration:      %.1fs\n", sum.AverageDurationSeconds)
	fmt.Fprintf(out, "Total crossings:   %d\n", sum.TotalMovesMade)

	if len(sum.MistakeFrequency) == 0 {
		return
	}
	tags := make([]core.Mistake, 0, len(sum.MistakeFrequency))
	for m := range sum.MistakeFrequency {
		tags = append(tags, m)
	}
	sort.Slice(tags, func(i, j int) bool {
		if sum.MistakeFrequency[tags[i]] != sum.MistakeFrequency[tags[j]] {
			return sum.MistakeFrequency[tags[i]] > sum.MistakeFrequency[tags[j]]
		}
		return tags[i] < tags[j]
	})
	fmt.Fprintln(out, "Mistakes:")
	for _, m := range tags {
		fmt.Fprintf(out, "  %-24s %d\n", m.Label(), sum.MistakeFrequency[m])
	}
}

func newExportCmd(a *app) *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Mirror every session to Cloud Storage (or a local file) as NDJSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, closeDB, err := a.openStore()
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			defer closeDB()

			sessions, err := st.AllSessions(ctx)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}

			if to != "" && !strings.HasPrefix(to, "gs://") {
				return exportFile(to, sessions)
			}

			bucket, object := a.cfg.Cloud.Bucket, a.cfg.Cloud.Object
			if to != "" {
				if bucket, object, err = cloud.ParseURL(to); err != nil {
					return fmt.Errorf("export: %w", err)
				}
			}
			if bucket == "" {
				return errors.New("export: no bucket configured (set cloud.bucket or pass --to gs://bucket/object)")
			}
			m, err := cloud.NewMirror(ctx, bucket, object, a.cfg.Cloud.CredentialsFile)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			defer m.Close()

			if err := m.Export(ctx, sessions); err != nil {
				return fmt.Errorf("export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d sessions to %s\n", len(sessions), m.URL())
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "destination: gs://bucket/object or a local .ndjson path")
	return cmd
}

func exportFile(path string, sessions []core.SessionRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := analytics.WriteNDJSON(f, sessions); err != nil {
		_ = f.Close()
		return fmt.Errorf("export: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	fmt.Printf("Exported %d sessions to %s\n", len(sessions), path)
	return nil
}
