package hw

import (
	"time"

	"github.com/banshee-data/rover/internal/monitoring"
)

const (
	// HalfDuty and FullDuty are 16-bit PWM duty cycles.
	HalfDuty = 32768
	FullDuty = 65535
)

// Beeper plays short tones without blocking the control loop. Beep starts
// the tone; Update, called every tick, silences it once the duration has
// passed.
type Beeper struct {
	tone     ToneGenerator
	duration time.Duration
	on       bool
	since    time.Time
}

// NewBeeper returns a Beeper that holds each tone for duration.
func NewBeeper(tone ToneGenerator, duration time.Duration) *Beeper {
	return &Beeper{tone: tone, duration: duration}
}

// Beep starts a half-volume tone at freq.
func (b *Beeper) Beep(now time.Time, freq int) { b.play(now, freq, HalfDuty) }

// Alarm starts a full-volume tone at freq.
func (b *Beeper) Alarm(now time.Time, freq int) { b.play(now, freq, FullDuty) }

func (b *Beeper) play(now time.Time, freq, duty int) {
	if err := b.tone.Tone(freq, duty); err != nil {
		monitoring.Logf("beeper: tone %d Hz failed: %v", freq, err)
		return
	}
	b.on = true
	b.since = now
}

// Update silences a tone that has played for its full duration.
func (b *Beeper) Update(now time.Time) {
	if b.on && now.Sub(b.since) >= b.duration {
		b.Silence()
	}
}

// Silence turns the tone off immediately.
func (b *Beeper) Silence() {
	if err := b.tone.Off(); err != nil {
		monitoring.Logf("beeper: silencing failed: %v", err)
	}
	b.on = false
}

// Active reports whether a tone is playing.
func (b *Beeper) Active() bool { return b.on }
