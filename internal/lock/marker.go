package lock

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// markerOwner is written into the marker so waiters can detect an updater
// that exited without cleaning up.
type markerOwner struct {
	PID       int       `json:"pid"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}

func (l *Lock) takeMarker(ctx context.Context) (string, error) {
	token := uuid.NewString()
	op := func() error {
		err := l.createMarker(token)
		if err == nil {
			return nil
		}
		if !errors.Is(err, os.ErrExist) {
			return backoff.Permanent(fmt.Errorf("lock: create marker: %w", err))
		}
		if l.reclaimStaleMarker() {
			return l.createMarkerOrHeld(token)
		}
		return errMarkerHeld
	}

	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(l.interval),
		backoff.WithMultiplier(1),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxInterval(l.interval),
		backoff.WithMaxElapsedTime(l.wait),
	)
	err := backoff.Retry(op, backoff.WithContext(b, ctx))
	if errors.Is(err, errMarkerHeld) {
		log.Error().Str("marker", l.markerPath()).Dur("wait", l.wait).Msg("lock.marker wait timed out")
		return "", fmt.Errorf("%w: %s held past %s", ErrMarkerTimeout, l.markerPath(), l.wait)
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

func (l *Lock) createMarkerOrHeld(token string) error {
	err := l.createMarker(token)
	if errors.Is(err, os.ErrExist) {
		return errMarkerHeld
	}
	if err != nil {
		return backoff.Permanent(fmt.Errorf("lock: create marker: %w", err))
	}
	return nil
}

func (l *Lock) createMarker(token string) error {
	f, err := os.OpenFile(l.markerPath(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	data, err := json.Marshal(markerOwner{PID: l.pid, Token: token, CreatedAt: l.now().UTC()})
	if err == nil {
		_, err = f.Write(data)
	}
	if err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(l.markerPath())
		return fmt.Errorf("lock: write marker: %w", err)
	}
	return nil
}

// dropMarker removes the marker unless another updater has since taken it.
func (l *Lock) dropMarker(token string) error {
	if owner, _, ok := l.readMarker(); ok && owner.Token != token {
		log.Warn().Int("owner", owner.PID).Msg("lock.marker owned by another updater, leaving in place")
		return nil
	}
	if err := os.Remove(l.markerPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("lock: remove marker: %w", err)
	}
	return nil
}

// reclaimStaleMarker removes a marker whose recorded owner has exited.
// Markers without a readable owner are never reclaimed.
func (l *Lock) reclaimStaleMarker() bool {
	owner, raw, ok := l.readMarker()
	if !ok || owner.PID <= 0 || owner.PID == l.pid || l.alive(owner.PID) {
		return false
	}
	current, err := os.ReadFile(l.markerPath())
	if err != nil || !bytes.Equal(current, raw) {
		return false
	}
	if err := os.Remove(l.markerPath()); err != nil {
		return false
	}
	log.Warn().
		Int("owner", owner.PID).
		Time("created_at", owner.CreatedAt).
		Msg("lock.marker reclaimed from exited updater")
	return true
}

func (l *Lock) readMarker() (markerOwner, []byte, bool) {
	raw, err := os.ReadFile(l.markerPath())
	if err != nil || len(bytes.TrimSpace(raw)) == 0 {
		return markerOwner{}, nil, false
	}
	var owner markerOwner
	if err := json.Unmarshal(raw, &owner); err != nil || owner.Token == "" {
		return markerOwner{}, nil, false
	}
	return owner, raw, true
}
