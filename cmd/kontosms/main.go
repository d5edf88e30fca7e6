// kontosms sends one SMS per recipient through a kontomanager portal and
// waits for the per-message outcomes. Configuration comes from the
// environment (see internal/config); recipients and the message text come
// from the command line:
//
//	kontosms -to +436641234567 -to 06641234568 "text to send"
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	kontomanager "github.com/example/kontomanager-go"
	"github.com/example/kontomanager-go/carrier"
	"github.com/example/kontomanager-go/internal/config"
	"github.com/example/kontomanager-go/internal/logger"
	"github.com/example/kontomanager-go/internal/validate"
)

type recipientList []string

func (r *recipientList) String() string { return strings.Join(*r, ",") }

func (r *recipientList) Set(value string) error {
	number, err := validate.Recipient(value)
	if err != nil {
		return err
	}
	*r = append(*r, number)
	return nil
}

func main() {
	var recipients recipientList
	flag.Var(&recipients, "to", "recipient number, repeatable")
	flag.Parse()

	if err := run(recipients, strings.Join(flag.Args(), " ")); err != nil {
		fmt.Fprintln(os.Stderr, "kontosms:", err)
		os.Exit(1)
	}
}

func run(recipients []string, body string) error {
	if len(recipients) == 0 {
		return fmt.Errorf("at least one -to recipient is required")
	}
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("message text is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		return err
	}

	def, err := resolveCarrier(cfg)
	if err != nil {
		return err
	}

	opts := []kontomanager.Option{
		kontomanager.WithLogger(log),
		kontomanager.WithSessionTimeout(cfg.Session.Timeout),
		kontomanager.WithDispatchInterval(cfg.Dispatch.Interval),
		kontomanager.WithAdmissionPolicy(cfg.Dispatch.AdmissionWindow, cfg.Dispatch.AdmissionLimit),
	}
	if cfg.Dispatch.UseQueue {
		opts = append(opts, kontomanager.WithQueue())
	}

	client, err := kontomanager.New(def, kontomanager.Credentials{
		Username: cfg.Account.Username,
		Password: cfg.Account.Password,
	}, opts...)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	for _, recipient := range recipients {
		m := kontomanager.NewMessage(recipient, body)
		res, err := client.SendMessage(ctx, m)
		if err != nil {
			return err
		}
		if res != kontomanager.ResultEnqueued {
			log.Info().Str("recipient", m.RecipientNumber).Str("result", res.String()).Msg("sent synchronously")
			continue
		}
		g.Go(func() error {
			return watchOutcome(ctx, log, m)
		})
	}
	return g.Wait()
}

// watchOutcome drains one message's attempt results until a terminal one
// arrives or the context ends.
func watchOutcome(ctx context.Context, log zerolog.Logger, m *kontomanager.Message) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-m.Attempts():
			log.Info().
				Str("recipient", m.RecipientNumber).
				Str("result", res.String()).
				Bool("sent", m.Sent()).
				Msg("send attempted")
			if res.Terminal() {
				if !m.Sent() {
					return fmt.Errorf("sending to %s failed: %s", m.RecipientNumber, res)
				}
				return nil
			}
		}
	}
}

func resolveCarrier(cfg *config.Config) (carrier.Carrier, error) {
	if cfg.Account.CarrierFile != "" {
		catalogue, err := carrier.LoadFile(cfg.Account.CarrierFile)
		if err != nil {
			return carrier.Carrier{}, err
		}
		def, ok := catalogue[cfg.Account.Carrier]
		if !ok {
			return carrier.Carrier{}, fmt.Errorf("carrier %q not present in %s", cfg.Account.Carrier, cfg.Account.CarrierFile)
		}
		return def, nil
	}

	switch cfg.Account.Carrier {
	case "yesss":
		return carrier.Yesss(), nil
	case "educom":
		return carrier.Educom(), nil
	case "xoxo":
		return carrier.XOXO(), nil
	case "custom":
		return carrier.Custom("custom", cfg.Account.BaseURL)
	default:
		return carrier.Carrier{}, fmt.Errorf("unknown carrier %q", cfg.Account.Carrier)
	}
}
