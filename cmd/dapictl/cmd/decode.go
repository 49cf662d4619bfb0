package cmd

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"dapi-grpc/message"
	"dapi-grpc/protocol"

	"github.com/spf13/cobra"
)

func newDecodeCmd(_ *globalOptions) *cobra.Command {
	var (
		format   string
		response bool
	)
	cmd := &cobra.Command{
		Use:   "decode <method> [file]",
		Short: "Decode captured Platform messages to JSON",
		Long: fmt.Sprintf(`Decodes wire bytes of a Platform request (or, with --response, a response)
read from file or stdin and prints each message as JSON.

Formats:
  raw            one protobuf message
  hex, base64    one protobuf message, text encoded
  framed         gRPC length-prefixed messages, as in an HTTP/2 DATA frame
  grpc-web-text  base64 of framed messages, trailers skipped

Methods: %s`, strings.Join(methodNames(), ", ")),
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pair, ok := message.Pairs[args[0]]
			if !ok {
				return fmt.Errorf("unknown method %q", args[0])
			}

			var (
				input []byte
				err   error
			)
			if len(args) == 2 {
				input, err = os.ReadFile(args[1])
			} else {
				input, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return err
			}

			bodies, err := splitBodies(format, input)
			if err != nil {
				return err
			}
			for _, body := range bodies {
				msg := pair.NewRequest()
				if response {
					msg = pair.NewResponse()
				}
				if err := msg.UnmarshalWire(body); err != nil {
					return fmt.Errorf("decode %s: %w", args[0], err)
				}
				if err := printJSON(cmd.OutOrStdout(), msg); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "framed", "raw, hex, base64, framed or grpc-web-text")
	cmd.Flags().BoolVar(&response, "response", false, "decode responses instead of requests")
	return cmd
}

// splitBodies turns input in the given format into protobuf message bodies.
func splitBodies(format string, input []byte) ([][]byte, error) {
	text := string(bytes.TrimSpace(input))
	switch format {
	case "raw":
		return [][]byte{input}, nil
	case "hex":
		b, err := hex.DecodeString(text)
		if err != nil {
			return nil, fmt.Errorf("invalid hex input: %w", err)
		}
		return [][]byte{b}, nil
	case "base64":
		b, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 input: %w", err)
		}
		return [][]byte{b}, nil
	case "framed":
		return protocol.DecodeAll(bytes.NewReader(input))
	case "grpc-web-text":
		b, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 input: %w", err)
		}
		return protocol.DecodeAll(bytes.NewReader(b))
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

func methodNames() []string {
	names := make([]string, 0, len(message.Pairs))
	for name := range message.Pairs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
