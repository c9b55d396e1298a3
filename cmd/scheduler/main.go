package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/rent-ledger/internal/app"
	"github.com/segyhp/rent-ledger/internal/config"
	"github.com/segyhp/rent-ledger/internal/logger"
)

const jobTimeout = 30 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log := logger.New(cfg.Logging)
	log.Info("Starting billing scheduler...")

	application, err := app.New(context.Background(), cfg, log)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer application.Close()

	loc := cfg.GetSchedulerLocation()
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)

	jobs := setupCronJobs(c, application, loc)

	if cfg.Scheduler.RunImmediately {
		for name, job := range jobs {
			log.WithField("job", name).Info("Running job at startup")
			job()
		}
	}

	c.Start()
	log.Info("Scheduler started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down scheduler...")
	<-c.Stop().Done()
	log.Info("Scheduler stopped")
}

func setupCronJobs(c *cron.Cron, a *app.App, loc *time.Location) map[string]func() {
	log := a.Logger
	cfg := a.Config.Scheduler

	jobs := map[string]func(){
		"generate_obligations": func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			results, err := a.Obligations.GenerateForActiveLeases(ctx, 0)
			if err != nil {
				log.WithError(err).Error("Obligation generation finished with failures")
			}
			log.WithField("leases", len(results)).Info("Obligation generation job done")
		},
		"apply_late_fees": func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			if _, err := a.LateFees.ApplyLateFees(ctx, today(loc)); err != nil {
				log.WithError(err).Error("Late fee job failed")
			}
		},
		"report_stale_intents": func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			if _, err := a.Reconciler.ReportStaleIntents(ctx); err != nil {
				log.WithError(err).Error("Stale intent report failed")
			}
		},
		"send_reminders": func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			if _, err := a.Reminders.SendReminders(ctx, today(loc)); err != nil {
				log.WithError(err).Error("Reminder job failed")
			}
		},
	}

	specs := map[string]string{
		"generate_obligations": cfg.GenerateSpec,
		"apply_late_fees":      cfg.LateFeeSpec,
		"report_stale_intents": cfg.StaleSpec,
		"send_reminders":       cfg.ReminderSpec,
	}

	for name, spec := range specs {
		if _, err := c.AddFunc(spec, jobs[name]); err != nil {
			log.WithError(err).WithFields(logrus.Fields{"job": name, "spec": spec}).Fatal("Invalid cron spec")
		}
	}

	log.Info("Cron jobs scheduled successfully")
	return jobs
}

// today is the current calendar date in the scheduler's zone, as a UTC date
func today(loc *time.Location) time.Time {
	now := time.Now().In(loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
