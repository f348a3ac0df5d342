package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"fixora/internal/api"
	"fixora/internal/config"
	"fixora/internal/events"
	"fixora/internal/export"
	"fixora/internal/models"
	"fixora/internal/realtime"
	"fixora/internal/service"

	"github.com/spf13/pflag"
)

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"bookings": runBookings,
	"provider": runProvider,
	"watch":    runWatch,
	"status":   runStatus,
	"admin":    runAdmin,
	"export":   runExport,
	"book":     runBook,
	"profile":  runProfile,
}

// listFlags are shared by the list commands.
type listFlags struct {
	filter  string
	search  string
	page    int
	perPage int
}

func (f *listFlags) add(fs *pflag.FlagSet, defaultPerPage int) {
	fs.StringVar(&f.filter, "filter", "all", "status tab: all, upcoming, pending, accepted, in_progress, completed, cancelled, rejected")
	fs.StringVarP(&f.search, "search", "q", "", "free-text search")
	fs.IntVar(&f.page, "page", 1, "page number")
	fs.IntVar(&f.perPage, "per-page", defaultPerPage, "items per page")
}

// apply loads the requested parameters with a single fetch.
func (f *listFlags) apply(ctx context.Context, list *service.BookingList) error {
	filter, err := models.ParseFilter(f.filter)
	if err != nil {
		return err
	}
	return list.SetQuery(ctx, service.Query{
		Filter:   filter,
		Search:   f.search,
		Page:     f.page,
		PageSize: f.perPage,
	})
}

func newFlagSet(name string) *pflag.FlagSet {
	return pflag.NewFlagSet("fixora "+name, pflag.ContinueOnError)
}

func (a *app) listOptions(surface string) service.ListOptions {
	return service.ListOptions{
		Surface:  surface,
		PageSize: a.cfg.Client.PageSize,
		Debounce: a.cfg.Client.SearchDebounce,
		Notifier: service.LogNotifier(a.logger),
		Logger:   a.logger,
	}
}

func runBookings(ctx context.Context, a *app, args []string) error {
	var lf listFlags
	fs := newFlagSet("bookings")
	lf.add(fs, a.cfg.Client.PageSize)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.requireRole(ctx, models.RoleCustomer); err != nil {
		return err
	}

	customer := service.NewCustomerBookings(a.client, a.listOptions("customer"))
	defer customer.Close()
	if err := lf.apply(ctx, customer.BookingList); err != nil {
		return err
	}
	a.printView(customer.Snapshot())
	return nil
}

func runAdmin(ctx context.Context, a *app, args []string) error {
	var lf listFlags
	fs := newFlagSet("admin")
	lf.add(fs, a.cfg.Client.PageSize)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.requireRole(ctx, models.RoleAdmin); err != nil {
		return err
	}

	admin := service.NewAdminBookings(a.client, a.listOptions("admin"))
	defer admin.Close()
	if err := lf.apply(ctx, admin.BookingList); err != nil {
		return err
	}
	a.printView(admin.Snapshot())
	return nil
}

func runProvider(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("provider")
	months := fs.Int("months", a.cfg.Client.EarningsMonths, "months of earnings to show")
	toXLSX := fs.Bool("export", false, "also write the dashboard to an xlsx file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.requireRole(ctx, models.RoleProvider); err != nil {
		return err
	}

	dash := service.NewProviderDashboard(a.client, nil, a.providerOptions())
	defer dash.Unmount()
	if err := dash.Mount(ctx); err != nil {
		return err
	}
	a.printDashboard(dash, *months)

	if *toXLSX {
		earnings := dash.Earnings(time.Now(), *months)
		exporter := export.New(a.cfg.Exports, a.cfg.Client.PriceEstimate, a.logger)
		path, err := exporter.Bookings("Provider dashboard", dash.All(), &earnings)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, path)
	}
	return nil
}

func (a *app) providerOptions() service.ListOptions {
	opts := a.listOptions("provider")
	opts.PageSize = models.MaxPageSize
	return opts
}

func runWatch(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("watch")
	months := fs.Int("months", a.cfg.Client.EarningsMonths, "months of earnings to show")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.requireRole(ctx, models.RoleProvider); err != nil {
		return err
	}
	startMetrics(ctx, a.cfg, a.logger)

	manager := realtime.NewManager(a.cfg.Realtime, a.client.Token(), a.logger)
	dash := service.NewProviderDashboard(a.client, manager, a.providerOptions())
	defer dash.Unmount()
	if err := dash.Mount(ctx); err != nil && !errors.Is(err, realtime.ErrNotConfigured) {
		return err
	}
	a.printDashboard(dash, *months)

	// Reprint whenever a pushed event lands.
	changed := make(chan struct{}, 1)
	notify := func(*events.Event) error {
		select {
		case changed <- struct{}{}:
		default:
		}
		return nil
	}
	defer manager.Subscribe(events.EventBookingCreated, notify)()
	defer manager.Subscribe(events.EventNotification, notify)()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info().Msg("shutdown signal received")
			return nil
		case <-changed:
			a.printDashboard(dash, *months)
		}
	}
}

func runStatus(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("status")
	priceInput := fs.String("price", "", "final price, required when completing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.New("usage: fixora status <booking-id> <next-status> [--price N]")
	}
	next, err := models.ParseStatus(fs.Arg(1))
	if err != nil {
		return err
	}
	if err := a.requireRole(ctx, models.RoleProvider); err != nil {
		return err
	}

	dash := service.NewProviderDashboard(a.client, nil, a.providerOptions())
	defer dash.Unmount()
	if err := dash.Mount(ctx); err != nil {
		return err
	}
	b, ok := dash.Find(fs.Arg(0))
	if !ok {
		return fmt.Errorf("booking %s: %w", fs.Arg(0), api.ErrNotFound)
	}

	prompt, err := dash.Transitions.Begin(b, models.Action{Next: next})
	if err != nil {
		return err
	}
	updated, err := dash.Transitions.Confirm(ctx, prompt, b, *priceInput)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: %s -> %s %s\n", updated.ID, b.Status.Label(), updated.Status.Label(),
		models.DisplayPrice(updated, false))
	return nil
}

func runExport(ctx context.Context, a *app, args []string) error {
	var lf listFlags
	fs := newFlagSet("export")
	lf.add(fs, models.MaxPageSize)
	out := fs.String("out", a.cfg.Exports.Path, "directory to write the workbook to")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.requireRole(ctx, models.RoleCustomer); err != nil {
		return err
	}

	customer := service.NewCustomerBookings(a.client, a.listOptions("customer"))
	defer customer.Close()
	if err := lf.apply(ctx, customer.BookingList); err != nil {
		return err
	}

	exporter := export.New(config.ExportConfig{Path: *out}, a.cfg.Client.PriceEstimate, a.logger)
	path, err := exporter.Bookings("My bookings", customer.Snapshot().Items, nil)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, path)
	return nil
}

func runBook(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("book")
	providerID := fs.String("provider", "", "provider id")
	at := fs.String("at", "", "start time, RFC 3339")
	hours := fs.Int("hours", models.MinDurationHours, "duration in hours (1-4)")
	address := fs.String("address", "", "service address")
	notes := fs.String("notes", "", "notes for the provider")
	if err := fs.Parse(args); err != nil {
		return err
	}

	scheduled, err := time.Parse(time.RFC3339, *at)
	if err != nil {
		return &api.ValidationError{Field: "scheduledAt", Message: "use RFC 3339, e.g. 2026-10-20T10:00:00+05:30"}
	}
	var provider *models.Provider
	if *providerID != "" {
		provider, err = a.client.GetProvider(ctx, *providerID)
		if err != nil && !errors.Is(err, api.ErrNotFound) {
			return err
		}
	}

	created, err := a.client.CreateBooking(ctx, api.CreateBookingRequest{
		ProviderID:    *providerID,
		ServiceTitle:  api.ServiceTitleFor(provider),
		ScheduledAt:   scheduled,
		DurationHours: *hours,
		Address:       *address,
		Notes:         *notes,
	})
	if err != nil {
		return errors.New(api.CreateBookingMessage(err))
	}
	fmt.Fprintf(a.out, "booked %s (%s) for %s\n", created.ID, created.Status.Label(),
		created.ScheduledAt.Format("02 Jan 2006, 15:04"))
	return nil
}

func runProfile(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("profile")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: fixora profile <provider-id>")
	}
	p, err := a.client.GetProvider(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s (%s)\n", p.Name, p.ID)
	if len(p.Categories) > 0 {
		fmt.Fprintf(a.out, "categories: %s\n", strings.Join(p.Categories, ", "))
	}
	if p.City != "" {
		fmt.Fprintf(a.out, "city: %s\n", p.City)
	}
	if p.HourlyRate > 0 {
		fmt.Fprintf(a.out, "rate: %s/hr\n", models.FormatINR(p.HourlyRate))
	}
	fmt.Fprintf(a.out, "verified: %t\n", p.Verified)
	return nil
}

func (a *app) printView(v service.View[*models.Booking]) {
	fmt.Fprintf(a.out, "%s | page %d/%d | %d total\n", v.Filter, v.Page, v.PageCount, v.Total)
	tabs := []models.Filter{
		models.FilterAll, models.FilterUpcoming, models.Filter(models.StatusInProgress),
		models.Filter(models.StatusCompleted), models.Filter(models.StatusCancelled), models.Filter(models.StatusRejected),
	}
	parts := make([]string, 0, len(tabs))
	for _, t := range tabs {
		parts = append(parts, fmt.Sprintf("%s:%d", t, v.Counts[t]))
	}
	fmt.Fprintln(a.out, strings.Join(parts, "  "))
	a.printBookings(v.Items)
}

func (a *app) printBookings(items []*models.Booking) {
	if len(items) == 0 {
		fmt.Fprintln(a.out, "no bookings")
		return
	}
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSERVICE\tCUSTOMER\tWHEN\tHRS\tSTATUS\tPRICE")
	for _, b := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			b.ID, b.ServiceTitle, b.CustomerDisplayName(),
			b.ScheduledAt.Local().Format("02 Jan 2006 15:04"), b.DurationHours,
			b.Status.Label(), models.DisplayPrice(b, a.cfg.Client.PriceEstimate))
	}
	_ = w.Flush()
}

func (a *app) printDashboard(d *service.ProviderDashboard, months int) {
	totals := d.Totals()
	earnings := d.Earnings(time.Now(), months)
	fmt.Fprintf(a.out, "bookings: %d  completed: %d  this month: %s\n",
		totals.Bookings, totals.Completed, models.FormatINR(earnings.ThisMonth))

	fmt.Fprintln(a.out, "\nActive")
	a.printBookings(d.Active())
	fmt.Fprintln(a.out, "\nArchive")
	a.printBookings(d.Archive())

	fmt.Fprintln(a.out, "\nEarnings")
	for _, m := range earnings.Months {
		fmt.Fprintf(a.out, "  %-9s %s\n", m.Label, models.FormatINR(m.Amount))
	}
}
