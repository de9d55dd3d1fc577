package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/iliyamo/event-ticket-booking/internal/apiclient"
	"github.com/iliyamo/event-ticket-booking/internal/availability"
	"github.com/iliyamo/event-ticket-booking/internal/booking"
	"github.com/iliyamo/event-ticket-booking/internal/notify"
	"github.com/iliyamo/event-ticket-booking/internal/seatmap"
)

type options struct {
	api         string
	token       string
	eventID     uint64
	rows        int
	seatsPerRow int
}

func (o *options) layout() seatmap.Layout {
	return seatmap.Layout{Rows: o.rows, SeatsPerRow: o.seatsPerRow}
}

func (o *options) client() *apiclient.Client { return apiclient.New(o.api, o.token) }

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "seatpicker",
		Short:         "Pick and book a seat for an event",
		SilenceUsage: true,
	}
	f := root.PersistentFlags()
	f.StringVar(&o.api, "api", envOr("SEATPICKER_API", "http://localhost:8080"), "API base URL")
	f.StringVar(&o.token, "token", os.Getenv("SEATPICKER_TOKEN"), "bearer token for booking")
	f.Uint64Var(&o.eventID, "event", 0, "event ID")
	f.IntVar(&o.rows, "rows", seatmap.DefaultLayout.Rows, "rows in the seat map")
	f.IntVar(&o.seatsPerRow, "seats-per-row", seatmap.DefaultLayout.SeatsPerRow, "seats in every row")
	_ = root.MarkPersistentFlagRequired("event")

	root.AddCommand(newShowCmd(o), newBookCmd(o), newWatchCmd(o))
	return root
}

func newShowCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the seat map with booked seats marked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			booked, err := o.client().BookedSeats(cmd.Context(), o.eventID)
			if err != nil {
				return err
			}
			printMap(cmd.OutOrStdout(), o.layout(), booked, "")
			return nil
		},
	}
}

func newBookCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "book SEAT",
		Short: "Select SEAT on a fresh seat map and book it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return book(cmd.Context(), cmd.OutOrStdout(), o, args[0])
		},
	}
}

// book refreshes availability, selects seat and submits the booking.  A
// rejected booking refreshes the map again so the next attempt starts from
// current data.
func book(ctx context.Context, out io.Writer, o *options, seat string) error {
	c := o.client()
	sel := seatmap.NewSelection(o.layout())

	booked, err := c.BookedSeats(ctx, o.eventID)
	if err != nil {
		return err
	}
	if err := sel.Select(seat, booked); err != nil {
		printMap(out, o.layout(), booked, "")
		return fmt.Errorf("cannot select %s: %w", seatmap.Normalize(seat), err)
	}

	chosen, _ := sel.Current()
	b, err := c.Book(ctx, o.eventID, chosen)
	if err != nil {
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) && apiErr.BookedSeats != nil {
			booked = seatmap.NewSeatSet(apiErr.BookedSeats...)
		} else if fresh, ferr := c.BookedSeats(ctx, o.eventID); ferr == nil {
			booked = fresh
		}
		if sel.Refresh(booked) {
			fmt.Fprintf(out, "%s was taken in the meantime.\n", seat)
		}
		printMap(out, o.layout(), booked, current(sel))
		switch {
		case errors.Is(err, booking.ErrSeatAlreadyBooked):
			return fmt.Errorf("seat already booked, choose another seat")
		case errors.Is(err, booking.ErrSoldOut):
			return fmt.Errorf("the event is sold out")
		}
		return err
	}

	booked[b.Ticket.SeatNumber] = struct{}{}
	sel.Reset()
	printMap(out, o.layout(), booked, "")
	fmt.Fprintf(out, "Booked %s: ticket %s, code %s, %d seats left\n",
		b.Ticket.SeatNumber, b.Ticket.TicketNumber, b.Ticket.QRCode, b.AvailableSeats)
	return nil
}

func newWatchCmd(o *options) *cobra.Command {
	var (
		redisAddr string
		seat      string
		interval  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the seat map fresh by polling, and by redis push when --redis is set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			layout := o.layout()
			sel := seatmap.NewSelection(layout)
			w := &availability.Watcher{
				Source:   o.client(),
				EventID:  o.eventID,
				Interval: interval,
				OnError:  func(err error) { fmt.Fprintf(cmd.ErrOrStderr(), "refresh failed: %v\n", err) },
			}
			first := true
			w.OnUpdate = func(booked seatmap.SeatSet) {
				if first && seat != "" {
					if err := sel.Select(seat, booked); err != nil {
						fmt.Fprintf(out, "cannot select %s: %v\n", seat, err)
					}
				} else if sel.Refresh(booked) {
					fmt.Fprintf(out, "%s was just booked by someone else; selection cleared\n", seat)
				}
				first = false
				printMap(out, layout, booked, current(sel))
			}

			if redisAddr != "" {
				rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
				defer rdb.Close()
				w.Subscriber = notify.NewRedisSubscriber(rdb)
			}
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&redisAddr, "redis", "", "redis address for push updates (optional)")
	cmd.Flags().StringVar(&seat, "select", "", "seat to hold selected while watching")
	cmd.Flags().DurationVar(&interval, "interval", availability.DefaultPollInterval, "poll interval")
	return cmd
}

func current(sel *seatmap.Selection) string {
	id, _ := sel.Current()
	return id
}

func printMap(out io.Writer, layout seatmap.Layout, booked seatmap.SeatSet, selected string) {
	fmt.Fprint(out, seatmap.Render(layout.View(booked, selected)))
	fmt.Fprintf(out, "%d of %d seats booked\n", len(booked), layout.Capacity())
}
