// Copyright © 2021 Jonathan Whitaker <jonathan@whitaker.io>

package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/streamson-io/tson"
	"github.com/streamson-io/tson/internal/tlog"
)

var encodeIndent string
var encodeEnvelope bool

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "encode - reads a JSON value from stdin and writes its tson frame to stdout",
	Run: func(cmd *cobra.Command, args []string) {
		opts := []tson.Option{tson.WithIndent(encodeIndent)}

		var root interface{}
		if encodeEnvelope {
			opts = append(opts, envelopeType())
			var env Envelope
			if err := json.NewDecoder(os.Stdin).Decode(&env); err != nil {
				tlog.Error().Err(err).Msg("tson encode: reading stdin as envelope")
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			root = env
		} else {
			if err := json.NewDecoder(os.Stdin).Decode(&root); err != nil {
				tlog.Error().Err(err).Msg("tson encode: reading stdin")
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
		}

		s, err := tson.New(opts...)
		if err != nil {
			tlog.Error().Err(err).Msg("tson encode: building session")
			os.Exit(1)
		}

		ctx := context.Background()
		chunks, errs := s.Stringify(ctx, root)

		out := bufio.NewWriter(os.Stdout)
		defer out.Flush()
		for chunk := range chunks {
			if _, err := out.WriteString(chunk); err != nil {
				tlog.Error().Err(err).Msg("tson encode: writing stdout")
				os.Exit(1)
			}
		}

		if err := <-errs; err != nil {
			tlog.Error().Err(err).Msg("tson encode: stringify failed")
			os.Exit(1)
		}
	},
}

func init() {
	encodeCmd.Flags().StringVar(&encodeIndent, "indent", "", "indent string for the head object, e.g. \"  \"")
	encodeCmd.Flags().BoolVar(&encodeEnvelope, "envelope", false, "decode stdin into the Envelope struct and tag it with structtag instead of folding it as a plain object")
	rootCmd.AddCommand(encodeCmd)
}
