package gateway

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/signalrun/internal/config"
	"github.com/sawpanic/signalrun/internal/domain/safety"
	"github.com/sawpanic/signalrun/internal/net/ratelimit"
)

// Poller is the single writer of the safety state: it polls gateway health
// and account figures on an interval and publishes one immutable snapshot
// per poll. Evaluation cycles only ever read.
type Poller struct {
	gw       MarketGateway
	acct     AccountSource
	holder   *safety.Holder
	settings *config.SettingsStore
	interval time.Duration
	limiter  *ratelimit.Limiter
}

// NewPoller creates a poller publishing into holder every interval.
func NewPoller(gw MarketGateway, acct AccountSource, holder *safety.Holder, settings *config.SettingsStore, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Poller{
		gw:       gw,
		acct:     acct,
		holder:   holder,
		settings: settings,
		interval: interval,
		limiter:  ratelimit.NewLimiter(10, 10),
	}
}

// Run polls until the context is cancelled. The first poll happens
// immediately so the process never starts on a stale snapshot.
func (p *Poller) Run(ctx context.Context) {
	p.PollOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("safety poller stopped")
			return
		case <-ticker.C:
			p.PollOnce(ctx)
		}
	}
}

// PollOnce performs one health+account poll and publishes the resulting
// snapshot. The snapshot is assembled completely before publication, so
// readers never observe a partial update.
func (p *Poller) PollOnce(ctx context.Context) {
	if err := p.limiter.Wait(ctx, "gateway"); err != nil {
		return
	}

	health := p.gw.Health()
	st := safety.State{
		Connected:     health.Connected,
		LastHeartbeat: health.LastHeartbeat,
		Limits:        p.settings.Snapshot().Limits(),
		UpdatedAt:     time.Now().UTC(),
	}

	if health.Connected {
		acct, err := p.acct.Account(ctx)
		if err != nil || !acct.Valid {
			log.Warn().Err(err).Msg("account poll failed, snapshot carries no account data")
		} else {
			st.HasAccount = true
			st.Balance = acct.Balance
			st.Equity = acct.Equity
			st.DrawdownPct = safety.Drawdown(acct.Balance, acct.Equity)
		}
	}

	p.holder.Publish(st)
}
