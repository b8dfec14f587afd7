package auth

import (
	"crypto/rand"
	"math/big"
	"time"
)

// TimingConfig controls how long failed credential checks are held.
type TimingConfig struct {
	Base           time.Duration
	Jitter         time.Duration
	DelayOnSuccess bool
}

// TimingDelay pads failed logins and reset requests so that "no such account"
// and "wrong password" answer in roughly the same time.
type TimingDelay struct {
	config TimingConfig
	sleep  func(time.Duration)
}

func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{
		config: config,
		sleep:  time.Sleep,
	}
}

// WaitFrom sleeps until at least Base+jitter has elapsed since start.
func (td *TimingDelay) WaitFrom(start time.Time, success bool) {
	if td == nil {
		return
	}
	if success && !td.config.DelayOnSuccess {
		return
	}

	target := td.config.Base + td.jitter()
	if remaining := target - time.Since(start); remaining > 0 {
		td.sleep(remaining)
	}
}

func (td *TimingDelay) jitter() time.Duration {
	if td.config.Jitter <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(td.config.Jitter)))
	if err != nil {
		return 0
	}
	return time.Duration(n.Int64())
}
