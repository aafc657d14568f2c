// Package jobs runs the background sweeps: hourly retry of referral-code
// issuance (the inline issuance after a transcription is fire-and-forget and
// may have failed) and a daily ledger-stats log line.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"voxnote.app/whatsapp-bot/internal/common"
	"voxnote.app/whatsapp-bot/internal/config"
	"voxnote.app/whatsapp-bot/internal/features/referrals"
	"voxnote.app/whatsapp-bot/internal/ledger"
)

// SendFunc delivers one text message to a phone number. The WhatsApp client
// lives in the transport layer; the scheduler only knows this seam.
type SendFunc func(phone, text string)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron        *cron.Cron
	store       ledger.Store
	referralSvc *referrals.Service
	send        SendFunc
	cfg         *config.Config
}

// NewScheduler creates the scheduler in the configured timezone.
func NewScheduler(store ledger.Store, referralSvc *referrals.Service, send SendFunc, cfg *config.Config) *Scheduler {
	loc, err := time.LoadLocation(cfg.AppTimezone)
	if err != nil {
		log.WithError(err).Warnf("Could not load timezone %s, using UTC", cfg.AppTimezone)
		loc = time.UTC
	}

	return &Scheduler{
		cron:        cron.New(cron.WithLocation(loc)),
		store:       store,
		referralSvc: referralSvc,
		send:        send,
		cfg:         cfg,
	}
}

// Start registers and starts all jobs.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.AddFunc(s.cfg.JobCodeSweepSpec, func() {
		log.Debug("[CRON] Referral code sweep")
		if err := s.sweepMissingCodes(ctx); err != nil {
			log.WithError(err).Error("[CRON] Referral code sweep failed")
		}
	})

	s.cron.AddFunc(s.cfg.JobDailyStatsSpec, func() {
		st, err := s.store.Stats(ctx)
		if err != nil {
			log.WithError(err).Error("[CRON] Ledger stats failed")
			return
		}
		log.WithFields(log.Fields{
			"users":             st.Users,
			"transcriptions":    st.Transcriptions,
			"referrals":         st.Referrals,
			"payments":          st.Payments,
			"credits_in_flight": st.CreditsInFlight,
		}).Info("[CRON] Daily ledger stats")
	})

	s.cron.Start()
	log.Infof("Scheduler started (%s)", s.cfg.AppTimezone)
}

// Stop shuts the scheduler down, waiting for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Scheduler stopped")
}

// sweepMissingCodes issues referral codes to eligible users whose inline
// issuance failed, and notifies them. Per-user failures are logged and
// skipped so one bad row cannot stall the sweep.
func (s *Scheduler) sweepMissingCodes(ctx context.Context) error {
	pending, err := s.store.UsersNeedingCode(ctx)
	if err != nil {
		return err
	}

	for _, u := range pending {
		code, err := s.referralSvc.GenerateCodeForUser(ctx, u.ID)
		if err != nil {
			log.WithError(err).WithField("user_id", u.ID).Warn("[CRON] Code issuance still failing")
			continue
		}

		text := "You are down to " + common.FormatCredits(u.CreditsRemaining) +
			". Share your code " + code + " with a friend and you both get " +
			common.FormatCredits(ledger.ReferralBonus) + " free."
		for _, chunk := range common.SplitMessage(text, s.cfg.MessageMaxLength) {
			s.send(u.Phone, chunk)
		}
	}

	if len(pending) > 0 {
		log.WithField("count", len(pending)).Info("[CRON] Referral code sweep done")
	}
	return nil
}
