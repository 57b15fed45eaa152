package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/funnyzak/mockflow/internal/live"
	"github.com/funnyzak/mockflow/internal/storage"
	"github.com/funnyzak/mockflow/pkg/endpoint"
)

// withApp runs fn with a one-shot app that prints every completed call.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(cmd.Context(), cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(cmd.Context(), a)
}

func newCallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "call <endpoint-id>",
		Short: "Simulate a call to an endpoint and print the outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				_, err := a.runner.Simulate(ctx, args[0], cfg.Output.Locale)
				return err
			})
		},
	}
}

func newFetchCmd() *cobra.Command {
	var (
		method     string
		headers    []string
		data       string
		endpointID string
	)
	cmd := &cobra.Command{
		Use:   "fetch [url]",
		Short: "Call a live API and print the outcome",
		Long: `Call a live API and print the outcome.

Without a URL the sample API is used. With --endpoint the live counterpart of
a mock endpoint is called (live.base_url plus the endpoint path) and its
answer is checked against the endpoint schemas.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if endpointID != "" {
					_, err := a.runner.FetchEndpoint(ctx, endpointID, cfg.Output.Locale)
					return err
				}

				req := live.Request{Method: strings.ToUpper(method), URL: live.DefaultURL, Headers: http.Header{}}
				if len(args) == 1 {
					req.URL = args[0]
				}
				for _, h := range headers {
					key, value, ok := strings.Cut(h, ":")
					if !ok {
						return fmt.Errorf("invalid header %q, expected 'Key: Value'", h)
					}
					req.Headers.Add(strings.TrimSpace(key), strings.TrimSpace(value))
				}
				if data != "" {
					req.Body = []byte(data)
				}
				_, err := a.runner.Fetch(ctx, req, cfg.Output.Locale)
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&method, "method", "X", http.MethodGet, "HTTP method")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "Request header 'Key: Value' (repeatable)")
	cmd.Flags().StringVarP(&data, "data", "d", "", "Request body")
	cmd.Flags().StringVarP(&endpointID, "endpoint", "e", "", "Fetch the live counterpart of this endpoint")
	return cmd
}

func newEndpointsCmd() *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:   "endpoints",
		Short: "List endpoints, favorites first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(_ context.Context, a *app) error {
				return a.printer.PrintEndpoints(a.workspace.List(search), a.workspace.Folders())
			})
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "Filter by name or path")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var (
		opts  storage.HistoryOptions
		stats bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent calls",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				items, total, err := a.store.ListHistory(ctx, opts)
				if err != nil {
					return fmt.Errorf("list history: %w", err)
				}
				if err := a.printer.PrintHistory(items, total); err != nil {
					return err
				}
				if !stats {
					return nil
				}
				filter := opts
				filter.Limit, filter.Offset = 0, 0
				var entries []*storage.HistoryEntry
				if err := a.store.IterateHistory(ctx, filter, func(e *storage.HistoryEntry) bool {
					entries = append(entries, e)
					return true
				}); err != nil {
					return fmt.Errorf("iterate history: %w", err)
				}
				return a.printer.PrintAnalytics(storage.Summarize(entries))
			})
		},
	}
	cmd.Flags().StringVarP(&opts.Search, "search", "s", "", "Filter by endpoint name or URL")
	cmd.Flags().StringVarP(&opts.Method, "method", "X", "", "Filter by HTTP method")
	cmd.Flags().StringVar(&opts.Source, "source", "", "Filter by source (mock, live)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "Maximum number of calls to show (0 = all)")
	cmd.Flags().BoolVar(&stats, "stats", false, "Also print analytics")

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete all recorded calls",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.store.ClearHistory(ctx); err != nil {
					return fmt.Errorf("clear history: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "History cleared")
				return nil
			})
		},
	})
	return cmd
}

func newShareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "share <endpoint-id>",
		Short: "Print a share link for an endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(_ context.Context, a *app) error {
				ep, err := a.workspace.Endpoint(args[0])
				if err != nil {
					return err
				}
				link, err := endpoint.ShareURL(cfg.Server.BaseURL, ep)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), link)
				return nil
			})
		},
	}
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <token-or-url>",
		Short: "Import an endpoint from a share token or link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				ep, err := a.workspace.Import(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %s %s %q as %s\n", ep.Method, ep.Path, ep.Name, ep.ID)
				return nil
			})
		},
	}
}
