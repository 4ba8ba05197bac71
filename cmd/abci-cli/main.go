// Command abci-cli sends single ABCI requests to a running
// application and prints the responses.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/blockberries/abci/client"
	"github.com/blockberries/abci/types"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "abci-cli: %v\n", err)
		os.Exit(1)
	}
}

type cli struct {
	addr    string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "abci-cli [command] [flags]",
		Short:         "Command-line client for ABCI applications",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.addr, "address", "tcp://127.0.0.1:26658", "application address")
	root.PersistentFlags().DurationVar(&c.timeout, "timeout", 10*time.Second, "per-command timeout")

	root.AddCommand(
		&cobra.Command{
			Use:   "echo [message]",
			Short: "Have the application echo a message",
			Args:  cobra.ExactArgs(1),
			RunE: c.with(func(ctx context.Context, conn *client.Client, w io.Writer, args []string) error {
				resp, err := conn.Echo(ctx, types.RequestEcho{Message: args[0]})
				if err != nil {
					return err
				}
				printResponse(w, response{Data: []byte(resp.Message)})
				return nil
			}),
		},
		&cobra.Command{
			Use:   "info",
			Short: "Get information about the application",
			Args:  cobra.NoArgs,
			RunE: c.with(func(ctx context.Context, conn *client.Client, w io.Writer, _ []string) error {
				resp, err := conn.Info(ctx, types.RequestInfo{Version: "abci-cli"})
				if err != nil {
					return err
				}
				printResponse(w, response{
					Data: []byte(resp.Data),
					Info: fmt.Sprintf("height: %d app_hash: %X", resp.LastBlockHeight, resp.LastBlockAppHash),
				})
				return nil
			}),
		},
		&cobra.Command{
			Use:   "set-option [key] [value]",
			Short: "Set an option on the application",
			Args:  cobra.ExactArgs(2),
			RunE: c.with(func(ctx context.Context, conn *client.Client, w io.Writer, args []string) error {
				resp, err := conn.SetOption(ctx, types.RequestSetOption{Key: args[0], Value: args[1]})
				if err != nil {
					return err
				}
				printResponse(w, response{Code: resp.Code, Log: resp.Log, Info: resp.Info})
				return nil
			}),
		},
		&cobra.Command{
			Use:   "check-tx [tx]",
			Short: "Validate a transaction",
			Args:  cobra.ExactArgs(1),
			RunE: c.with(func(ctx context.Context, conn *client.Client, w io.Writer, args []string) error {
				tx, err := parseBytes(args[0])
				if err != nil {
					return err
				}
				resp, err := conn.CheckTx(ctx, types.RequestCheckTx{Tx: tx})
				if err != nil {
					return err
				}
				printResponse(w, response{Code: resp.Code, Data: resp.Data, Log: resp.Log, Info: resp.Info})
				return nil
			}),
		},
		&cobra.Command{
			Use:   "deliver-tx [tx]",
			Short: "Deliver a new transaction to the application",
			Args:  cobra.ExactArgs(1),
			RunE: c.with(func(ctx context.Context, conn *client.Client, w io.Writer, args []string) error {
				tx, err := parseBytes(args[0])
				if err != nil {
					return err
				}
				resp, err := conn.DeliverTx(ctx, types.RequestDeliverTx{Tx: tx})
				if err != nil {
					return err
				}
				printResponse(w, response{Code: resp.Code, Data: resp.Data, Log: resp.Log, Info: resp.Info})
				return nil
			}),
		},
		newQueryCmd(c),
		&cobra.Command{
			Use:   "commit",
			Short: "Commit the application state and return the app hash",
			Args:  cobra.NoArgs,
			RunE: c.with(func(ctx context.Context, conn *client.Client, w io.Writer, _ []string) error {
				resp, err := conn.Commit(ctx)
				if err != nil {
					return err
				}
				printResponse(w, response{Code: resp.Code, Data: resp.Data})
				return nil
			}),
		},
	)
	return root
}

func newQueryCmd(c *cli) *cobra.Command {
	var (
		path   string
		height int64
		prove  bool
	)
	cmd := &cobra.Command{
		Use:   "query [data]",
		Short: "Query the application state",
		Args:  cobra.MaximumNArgs(1),
		RunE: c.with(func(ctx context.Context, conn *client.Client, w io.Writer, args []string) error {
			var data []byte
			if len(args) == 1 {
				var err error
				if data, err = parseBytes(args[0]); err != nil {
					return err
				}
			}
			resp, err := conn.Query(ctx, types.RequestQuery{Data: data, Path: path, Height: height, Prove: prove})
			if err != nil {
				return err
			}
			printResponse(w, response{
				Code:  resp.Code,
				Log:   resp.Log,
				Info:  resp.Info,
				Query: &resp,
			})
			return nil
		}),
	}
	cmd.Flags().StringVar(&path, "path", "/store", "path to prefix the query with")
	cmd.Flags().Int64Var(&height, "height", 0, "height to query the blockchain at")
	cmd.Flags().BoolVar(&prove, "prove", false, "whether or not to return a merkle proof of the query result")
	return cmd
}

type runFunc func(ctx context.Context, conn *client.Client, w io.Writer, args []string) error

// with dials the application for one command.
func (c *cli) with(fn runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
		defer cancel()
		conn, err := client.Dial(ctx, c.addr)
		if err != nil {
			return err
		}
		defer conn.Close()
		return fn(ctx, conn, cmd.OutOrStdout(), args)
	}
}

// parseBytes reads "0x"-prefixed hex or a quoted string.
func parseBytes(arg string) ([]byte, error) {
	if strings.HasPrefix(arg, "0x") || strings.HasPrefix(arg, "0X") {
		b, err := hex.DecodeString(arg[2:])
		if err != nil {
			return nil, fmt.Errorf("invalid hex %q: %w", arg, err)
		}
		return b, nil
	}
	if len(arg) >= 2 && arg[0] == '"' && arg[len(arg)-1] == '"' {
		return []byte(arg[1 : len(arg)-1]), nil
	}
	return nil, fmt.Errorf("argument %q must be 0x-prefixed hex or a quoted string", arg)
}

type response struct {
	Code  uint32
	Data  []byte
	Log   string
	Info  string
	Query *types.ResponseQuery
}

func printResponse(w io.Writer, r response) {
	if r.Code == types.CodeTypeOK {
		fmt.Fprintln(w, "-> code: OK")
	} else {
		fmt.Fprintf(w, "-> code: %d\n", r.Code)
	}
	if len(r.Data) != 0 {
		fmt.Fprintf(w, "-> data: %s\n", r.Data)
		fmt.Fprintf(w, "-> data.hex: 0x%X\n", r.Data)
	}
	if r.Log != "" {
		fmt.Fprintf(w, "-> log: %s\n", r.Log)
	}
	if r.Info != "" {
		fmt.Fprintf(w, "-> info: %s\n", r.Info)
	}
	if q := r.Query; q != nil {
		fmt.Fprintf(w, "-> height: %d\n", q.Height)
		if q.Key != nil {
			fmt.Fprintf(w, "-> key: %s\n", q.Key)
			fmt.Fprintf(w, "-> key.hex: %X\n", q.Key)
		}
		if q.Value != nil {
			fmt.Fprintf(w, "-> value: %s\n", q.Value)
			fmt.Fprintf(w, "-> value.hex: %X\n", q.Value)
		}
		if q.Proof != nil {
			fmt.Fprintf(w, "-> proof: %d ops\n", len(q.Proof.Ops))
		}
	}
}
