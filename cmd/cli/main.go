package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/iho/goconsolidation/internal/adapter/messaging/redisstream"
	postgresRepo "github.com/iho/goconsolidation/internal/adapter/repository/postgres"
	"github.com/iho/goconsolidation/internal/domain"
	"github.com/iho/goconsolidation/internal/infrastructure/postgres"
	"github.com/iho/goconsolidation/internal/infrastructure/redis"
)

var (
	baseURL string
	timeout time.Duration
	stdout  io.Writer = os.Stdout
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "consolidation-cli",
		Short:         "Daily consolidation CLI tool",
		Long:          `A command line interface for querying daily balances and feeding entry events to the consolidation service.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the consolidation API")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(balanceCmd(), eventsCmd(), migrateCmd())
	return rootCmd
}

func balanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Daily balance queries",
	}

	var date string
	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Show the consolidated balance of one day",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := domain.ParseDate(date); err != nil {
				return err
			}
			return getJSON(cmd.Context(), "/api/v1/balances/"+url.PathEscape(date))
		},
	}
	getCmd.Flags().StringVar(&date, "date", "", "Day to show (YYYY-MM-DD)")
	_ = getCmd.MarkFlagRequired("date")

	var start, end string
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Show the consolidated report of a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("start", start)
			q.Set("end", end)
			return getJSON(cmd.Context(), "/api/v1/balances/report?"+q.Encode())
		},
	}
	reportCmd.Flags().StringVar(&start, "start", "", "First day (YYYY-MM-DD)")
	reportCmd.Flags().StringVar(&end, "end", "", "Last day (YYYY-MM-DD)")
	_ = reportCmd.MarkFlagRequired("start")
	_ = reportCmd.MarkFlagRequired("end")

	var verifyStart, verifyEnd string
	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Check stored daily balances of a date range for inconsistencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("start", verifyStart)
			q.Set("end", verifyEnd)
			return getJSON(cmd.Context(), "/api/v1/balances/reconciliation?"+q.Encode())
		},
	}
	verifyCmd.Flags().StringVar(&verifyStart, "start", "", "First day (YYYY-MM-DD)")
	verifyCmd.Flags().StringVar(&verifyEnd, "end", "", "Last day (YYYY-MM-DD)")
	_ = verifyCmd.MarkFlagRequired("start")
	_ = verifyCmd.MarkFlagRequired("end")

	cmd.AddCommand(getCmd, reportCmd, verifyCmd)
	return cmd
}

type emitOptions struct {
	eventID   string
	entryID   string
	date      string
	kind      string
	amount    string
	oldDate   string
	oldKind   string
	oldAmount string
	redisURL  string
	stream    string
}

func eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Entry event operations",
	}

	opts := &emitOptions{}
	emitCmd := &cobra.Command{
		Use:       "emit [registered|updated|deleted]",
		Short:     "Emit an entry event over HTTP or onto the event stream",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"registered", "updated", "deleted"},
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := buildEnvelope(args[0], opts)
			if err != nil {
				return err
			}
			if opts.redisURL != "" {
				return publish(cmd.Context(), opts, env)
			}
			return postJSON(cmd.Context(), "/api/v1/events", env)
		},
	}

	f := emitCmd.Flags()
	f.StringVar(&opts.eventID, "event-id", "", "Event id (generated when empty)")
	f.StringVar(&opts.entryID, "entry", "", "Entry id")
	f.StringVar(&opts.date, "date", "", "Entry date (YYYY-MM-DD)")
	f.StringVar(&opts.kind, "kind", "credit", "Entry kind: credit or debit")
	f.StringVar(&opts.amount, "amount", "", "Entry amount")
	f.StringVar(&opts.oldDate, "old-date", "", "Previous entry date for updates")
	f.StringVar(&opts.oldKind, "old-kind", "", "Previous entry kind for updates")
	f.StringVar(&opts.oldAmount, "old-amount", "", "Previous entry amount for updates")
	f.StringVar(&opts.redisURL, "redis-url", "", "Publish to this Redis instead of calling the API")
	f.StringVar(&opts.stream, "stream", "entries.events", "Stream to publish to with --redis-url")
	_ = emitCmd.MarkFlagRequired("entry")
	_ = emitCmd.MarkFlagRequired("date")
	_ = emitCmd.MarkFlagRequired("amount")

	cmd.AddCommand(emitCmd)
	return cmd
}

func migrateCmd() *cobra.Command {
	var databaseURL, path string

	cmd := &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
			if args[0] == "down" {
				return postgres.RunMigrationsDown(databaseURL, path, logger)
			}
			return postgres.RunMigrations(databaseURL, path, logger)
		},
	}

	cmd.Flags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")
	cmd.Flags().StringVar(&path, "path", "internal/infrastructure/postgres/migrations", "Migrations directory")
	return cmd
}

func snapshotFrom(entryID, date, kind, amount string) (domain.EntrySnapshot, error) {
	d, err := domain.ParseDate(date)
	if err != nil {
		return domain.EntrySnapshot{}, err
	}
	k, err := domain.ParseEntryKind(kind)
	if err != nil {
		return domain.EntrySnapshot{}, fmt.Errorf("%w: %q", err, kind)
	}
	a, err := decimal.NewFromString(amount)
	if err != nil {
		return domain.EntrySnapshot{}, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return domain.EntrySnapshot{ID: entryID, Date: d, Kind: k, Amount: a}, nil
}

func buildEnvelope(kind string, opts *emitOptions) (domain.Envelope, error) {
	current, err := snapshotFrom(opts.entryID, opts.date, opts.kind, opts.amount)
	if err != nil {
		return domain.Envelope{}, err
	}

	eventID := opts.eventID
	if eventID == "" {
		eventID = postgresRepo.NewULIDGenerator().Generate()
	}

	var payload any
	var eventType string

	switch kind {
	case "registered":
		eventType = domain.EventTypeEntryRegistered
		payload = domain.EntryRegistered{EntryID: current.ID, Date: current.Date, Kind: current.Kind, Amount: current.Amount}
	case "deleted":
		eventType = domain.EventTypeEntryDeleted
		payload = domain.EntryDeleted{EntryID: current.ID, Date: current.Date, Kind: current.Kind, Amount: current.Amount}
	case "updated":
		oldDate, oldKind, oldAmount := opts.oldDate, opts.oldKind, opts.oldAmount
		if oldDate == "" {
			oldDate = opts.date
		}
		if oldKind == "" {
			oldKind = opts.kind
		}
		if oldAmount == "" {
			oldAmount = opts.amount
		}
		before, err := snapshotFrom(opts.entryID, oldDate, oldKind, oldAmount)
		if err != nil {
			return domain.Envelope{}, err
		}
		eventType = domain.EventTypeEntryUpdated
		payload = domain.EntryUpdated{EntryID: current.ID, Before: before, After: current}
	default:
		return domain.Envelope{}, fmt.Errorf("unknown event kind %q", kind)
	}

	return domain.NewEnvelope(eventID, eventType, "", time.Now().UTC(), payload)
}

func publish(ctx context.Context, opts *emitOptions, env domain.Envelope) error {
	client, err := redis.NewClient(ctx, opts.redisURL)
	if err != nil {
		return err
	}
	defer client.Close()

	id, err := redisstream.NewPublisher(client, opts.stream, 0).Publish(ctx, env)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "published %s %s as %s\n", env.Type, env.EventID, id)
	return nil
}

func getJSON(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+path, nil)
	if err != nil {
		return err
	}
	return doRequest(req)
}

func postJSON(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return doRequest(req)
}

func doRequest(req *http.Request) error {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("request failed (status %d): %s", resp.StatusCode, truncate(string(body), 512))
	}

	var result any
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	printJSON(result)
	return nil
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(stdout, "%v\n", v)
		return
	}
	fmt.Fprintln(stdout, string(data))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
