package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/wundergraph/graphiql-fetcher/pkg/fetcher"
	"github.com/wundergraph/graphiql-fetcher/pkg/wschannel"
)

var (
	fetchOperationName string
	fetchVariables     string
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch [file]",
	Short: "fetch dispatches a GraphQL document and prints every result as one JSON line",
	Long: `fetch reads a GraphQL document from file or stdin and executes one of its operations.
Queries and mutations print a single result, subscriptions print one line per event until the
server completes the subscription, an error occurs or the command is interrupted.
Responses that are not JSON objects are printed as they were received.`,
	Example: `fetch --endpoint http://localhost:8080/graphql --operation-name Hero query.graphql
echo 'subscription { counter }' | fetch --subprotocol graphql-ws`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query, err := readDocument(cmd, args)
		if err != nil {
			return err
		}

		var variables map[string]any
		if fetchVariables != "" {
			if err := json.Unmarshal([]byte(fetchVariables), &variables); err != nil {
				return fmt.Errorf("invalid variables: %w", err)
			}
		}

		cfg := loadConfig()
		log, syncLogger, err := newLogger(cfg.logLevel)
		if err != nil {
			return err
		}
		defer syncLogger()

		httpClient := &http.Client{Timeout: cfg.timeout}

		channel := wschannel.NewConnectionManager(cfg.subscriptionEndpoint,
			wschannel.WithLogger(log),
			wschannel.WithHeader(cfg.header),
			wschannel.WithSubProtocol(cfg.subProtocol),
			wschannel.WithAckTimeout(cfg.timeout),
		)
		defer func() {
			_ = channel.CloseAll()
		}()

		f := fetcher.New(cfg.endpoint, channel,
			fetcher.WithLogger(log),
			fetcher.WithHTTPClient(httpClient),
			fetcher.WithHeader(cfg.header),
		)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		result, err := f.Dispatch(ctx, fetcher.Request{
			Query:         query,
			OperationName: fetchOperationName,
			Variables:     variables,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch r := result.(type) {
		case *fetcher.ExecutionResult:
			return printResult(out, r)
		case *fetcher.RawResult:
			_, err := fmt.Fprintln(out, r.Body)
			return err
		case *fetcher.Subscribable:
			return runSubscription(ctx, out, r)
		default:
			return fmt.Errorf("unexpected result %T", result)
		}
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVar(&fetchOperationName, "operation-name", "", "name of the operation to execute, required when the document contains several operations")
	fetchCmd.Flags().StringVar(&fetchVariables, "variables", "", "JSON object of variables")
}

func runSubscription(ctx context.Context, out io.Writer, subscribable *fetcher.Subscribable) error {
	done := make(chan error, 1)
	handle := subscribable.Subscribe(fetcher.Callbacks(
		func(result *fetcher.ExecutionResult) {
			_ = printResult(out, result)
		},
		func() {
			done <- nil
		},
		func(err error) {
			done <- err
		},
	))

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		handle.Unsubscribe()
		return nil
	}
}

func printResult(out io.Writer, result *fetcher.ExecutionResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func readDocument(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", err
	}
	return string(data), nil
}
