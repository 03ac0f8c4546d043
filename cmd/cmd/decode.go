// Copyright © 2021 Jonathan Whitaker <jonathan@whitaker.io>

package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/streamson-io/tson"
	"github.com/streamson-io/tson/internal/tlog"
)

var decodeTimeout time.Duration
var decodeFormat string
var decodeEnvelope bool

var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "decode - reads a tson frame from stdin, resolves it fully, and writes plain JSON or YAML to stdout",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), decodeTimeout)
		defer cancel()

		var opts []tson.Option
		if decodeEnvelope {
			opts = append(opts, envelopeType())
		}
		s, err := tson.New(opts...)
		if err != nil {
			tlog.Error().Err(err).Msg("tson decode: building session")
			os.Exit(1)
		}

		root, err := s.Parse(ctx, readChunks(ctx))
		if err != nil {
			tlog.Error().Err(err).Msg("tson decode: parse failed")
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		resolved, err := resolveForPrinting(ctx, root)
		if err != nil {
			tlog.Error().Err(err).Msg("tson decode: resolving async handles")
			os.Exit(1)
		}

		switch decodeFormat {
		case "yaml":
			out, err := yaml.Marshal(resolved)
			if err != nil {
				tlog.Error().Err(err).Msg("tson decode: marshaling yaml")
				os.Exit(1)
			}
			os.Stdout.Write(out)
		case "json", "":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(resolved); err != nil {
				tlog.Error().Err(err).Msg("tson decode: writing stdout")
				os.Exit(1)
			}
		default:
			tlog.Error().Str("format", decodeFormat).Msg("tson decode: unknown --format")
			os.Exit(1)
		}
	},
}

func init() {
	decodeCmd.Flags().DurationVar(&decodeTimeout, "timeout", 30*time.Second, "deadline for the whole decode, including draining async handles")
	decodeCmd.Flags().StringVar(&decodeFormat, "format", "json", "output format: json or yaml")
	decodeCmd.Flags().BoolVar(&decodeEnvelope, "envelope", false, "register the Envelope struct tag so a frame tagged \"Envelope\" unfolds into a typed value instead of erroring as unknown")
	rootCmd.AddCommand(decodeCmd)
}

// readChunks adapts stdin to the chunk channel Session.Parse expects,
// reading one buffer's worth of bytes per chunk rather than a full frame at
// once, so decode exercises the same incremental path a network transport
// would (§4.4).
func readChunks(ctx context.Context) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		r := bufio.NewReaderSize(os.Stdin, 4096)
		buf := make([]byte, 4096)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				select {
				case out <- string(buf[:n]):
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if err != io.EOF {
					tlog.Debug().Err(err).Msg("tson decode: reading stdin")
				}
				return
			}
		}
	}()
	return out
}

// resolveForPrinting walks value, replacing any materialized Promise/Stream
// handle with its resolved/drained content, since a CLI consumer has no
// other side to hand the live handle to.
func resolveForPrinting(ctx context.Context, value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case *tson.Promise:
		resolved, err := v.Await(ctx)
		if err != nil {
			return nil, err
		}
		return resolveForPrinting(ctx, resolved)
	case *tson.Stream:
		var values []interface{}
		for {
			next, ok, err := v.Next(ctx)
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			resolved, err := resolveForPrinting(ctx, next)
			if err != nil {
				return nil, err
			}
			values = append(values, resolved)
		}
		return values, nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, sub := range v {
			resolved, err := resolveForPrinting(ctx, sub)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, sub := range v {
			resolved, err := resolveForPrinting(ctx, sub)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return value, nil
	}
}
