// Copyright © 2021 Jonathan Whitaker <jonathan@whitaker.io>

package cmd

import (
	"bufio"
	"context"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/streamson-io/tson"
	"github.com/streamson-io/tson/internal/tlog"
)

const (
	tsonPortKey        = "tson.port"
	tsonGracePeriodKey = "tson.grace_period"
	fiberConfigKey     = "fiber.config"
)

// tickRequest is the demo payload accepted by POST /stream: a sequence of
// values, each emitted onto an AsyncSequence after its paired delay so a
// client can observe a real multi-shot stream arriving over the wire.
type tickRequest struct {
	Values []struct {
		Value interface{} `json:"value"`
		DelayMS int       `json:"delay_ms"`
	} `json:"values"`
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve - runs an HTTP server that streams tson frames over SSE",
	Long: `serve - command starts a tson server based on the config in $HOME/.tson.yaml

	The following keys are read from $HOME/.tson.yaml
	EXAMPLE:

	fiber:
		config: # https://godoc.org/github.com/gofiber/fiber#Config
	tson:
		port: 5000
		grace_period: 10
	`,
	Run: func(cmd *cobra.Command, args []string) {
		fiberConfig := &fiber.Config{}
		if err := viper.UnmarshalKey(fiberConfigKey, fiberConfig); err != nil {
			tlog.Error().Err(err).Msg("tson serve: unmarshalling fiber config")
			os.Exit(1)
		}

		app := fiber.New(*fiberConfig)
		session, err := tson.New()
		if err != nil {
			tlog.Error().Err(err).Msg("tson serve: building session")
			os.Exit(1)
		}

		app.Post("/stream", streamHandler(session))

		port := viper.GetInt(tsonPortKey)
		if port == 0 {
			port = 5000
		}
		gracePeriod := viper.GetInt64(tsonGracePeriodKey)
		if gracePeriod == 0 {
			gracePeriod = 10
		}

		go func() {
			tlog.Info().Int("port", port).Msg("tson serve: listening")
			if err := app.Listen(":" + strconv.Itoa(port)); err != nil {
				tlog.Error().Err(err).Msg("tson serve: listen failed")
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt)
		<-quit

		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(gracePeriod)*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(ctx); err != nil {
			tlog.Error().Err(err).Msg("tson serve: shutdown failed")
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// streamHandler builds a tson AsyncSequence from the request body, stamps it
// into the root value, and reframes the session's Stringify output as an SSE
// response (§6, §9 supplement), so a browser EventSource can consume it
// directly.
func streamHandler(session *tson.Session) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req tickRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		stream := tson.NewStream(len(req.Values))
		ctx, cancel := context.WithCancel(c.Context())

		go func() {
			defer cancel()
			defer stream.Close()
			for _, v := range req.Values {
				select {
				case <-time.After(time.Duration(v.DelayMS) * time.Millisecond):
					stream.Send(v.Value)
				case <-ctx.Done():
					return
				}
			}
		}()

		chunks, errs := session.ToSSEResponse(ctx, map[string]interface{}{"events": stream})

		c.Set(fiber.HeaderContentType, "text/event-stream")
		c.Set(fiber.HeaderCacheControl, "no-cache")
		c.Set(fiber.HeaderConnection, "keep-alive")

		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			for chunk := range chunks {
				if _, err := w.WriteString(chunk); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
			if err := <-errs; err != nil {
				tlog.Debug().Err(err).Msg("tson serve: stream ended with error")
			}
		})

		return nil
	}
}
