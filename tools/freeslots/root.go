package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/md-rashed-zaman/freeslots/libs/grpcx"
	"github.com/md-rashed-zaman/freeslots/libs/slots"
	"github.com/md-rashed-zaman/freeslots/libs/slotsgrpc"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "freeslots",
		Short:         "Split the free time of a working day into fixed-length slots",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newComputeCmd(),
		newSampleCmd(),
	)
	return root
}

func newComputeCmd() *cobra.Command {
	var (
		input    string
		strict   bool
		grpcAddr string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Compute free slots for a request (built-in sample day by default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := loadRequest(cmd.InOrStdin(), input)
			if err != nil {
				return err
			}

			var result []slots.Span
			if grpcAddr != "" {
				result, err = computeRemote(cmd.Context(), grpcAddr, timeout, req)
			} else {
				result, err = slots.Compute(req, slots.Options{Validate: strict})
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", `Request JSON file ("-" for stdin); empty uses the sample day`)
	cmd.Flags().BoolVar(&strict, "strict", false, "Reject overlapping or reversed busy spans and non-positive durations")
	cmd.Flags().StringVar(&grpcAddr, "grpc-addr", "", "Compute on a running slot-service at host:port instead of locally")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Deadline for the remote call")

	return cmd
}

func newSampleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sample",
		Short: "Print the built-in sample request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeJSON(cmd.OutOrStdout(), slots.SampleRequest())
		},
	}
}

func loadRequest(stdin io.Reader, input string) (slots.Request, error) {
	var raw []byte
	var err error
	switch input {
	case "":
		return slots.SampleRequest(), nil
	case "-":
		raw, err = io.ReadAll(stdin)
	default:
		raw, err = os.ReadFile(input)
	}
	if err != nil {
		return slots.Request{}, fmt.Errorf("read request: %w", err)
	}

	var req slots.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return slots.Request{}, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

func computeRemote(ctx context.Context, addr string, timeout time.Duration, req slots.Request) ([]slots.Span, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	conn, err := grpcx.Dial(addr, grpcx.DialOptions{})
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ctx = grpcx.WithRequestID(ctx, grpcx.NewRequestID())
	return slotsgrpc.NewClient(conn).Compute(ctx, req)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
