package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/partfinder/partfinder/internal/client/authapi"
)

// ErrMalformedSession is returned by DecodeStored for records it cannot read.
var ErrMalformedSession = errors.New("malformed stored session")

// Session is an access/refresh token pair with absolute expiries.
type Session struct {
	AccessToken           string
	RefreshToken          string
	AccessTokenExpiresAt  time.Time
	RefreshTokenExpiresAt time.Time
}

// FromTokenResponse anchors the relative lifetimes of tr at receivedAt.
func FromTokenResponse(tr *authapi.TokenResponse, receivedAt time.Time) Session {
	s := Session{
		AccessToken:          tr.AccessToken,
		RefreshToken:         tr.RefreshToken,
		AccessTokenExpiresAt: receivedAt.Add(seconds(tr.ExpiresIn)),
	}
	if tr.RefreshToken != "" {
		s.RefreshTokenExpiresAt = receivedAt.Add(seconds(tr.RefreshExpiresIn))
	}
	return s
}

// Refreshed returns s updated with the outcome of a refresh call: the access
// token always, the refresh token only when the backend rotated it.
func (s Session) Refreshed(tr *authapi.TokenResponse, receivedAt time.Time) Session {
	s.AccessToken = tr.AccessToken
	s.AccessTokenExpiresAt = receivedAt.Add(seconds(tr.ExpiresIn))
	if tr.RefreshToken != "" {
		s.RefreshToken = tr.RefreshToken
	}
	if tr.RefreshExpiresIn > 0 {
		s.RefreshTokenExpiresAt = receivedAt.Add(seconds(tr.RefreshExpiresIn))
	}
	return s
}

// AccessValid reports whether the access token is still usable at t.
func (s Session) AccessValid(t time.Time) bool {
	return s.AccessToken != "" && s.AccessTokenExpiresAt.After(t)
}

// CanRefresh reports whether the refresh token may still be exchanged at t.
func (s Session) CanRefresh(t time.Time) bool {
	return s.RefreshToken != "" && !s.RefreshTokenExpiresAt.IsZero() && s.RefreshTokenExpiresAt.After(t)
}

const maxSeconds = math.MaxInt64 / int64(time.Second)

// seconds converts a lifetime in seconds, saturating instead of overflowing.
func seconds(n int64) time.Duration {
	if n > maxSeconds {
		n = maxSeconds
	}
	return time.Duration(n) * time.Second
}

// StoredSession is the persisted envelope.
type StoredSession struct {
	Session    Session
	ReceivedAt time.Time
}

type sessionRecord struct {
	AccessToken           string `json:"accessToken"`
	RefreshToken          string `json:"refreshToken"`
	AccessTokenExpiresAt  int64  `json:"accessTokenExpiresAt"`
	RefreshTokenExpiresAt int64  `json:"refreshTokenExpiresAt"`
}

type storedRecord struct {
	Session    sessionRecord `json:"session"`
	ReceivedAt int64         `json:"receivedAt"`
}

// EncodeStored serializes ss in the current layout, timestamps as epoch ms.
func EncodeStored(ss StoredSession) ([]byte, error) {
	return json.Marshal(storedRecord{
		Session: sessionRecord{
			AccessToken:           ss.Session.AccessToken,
			RefreshToken:          ss.Session.RefreshToken,
			AccessTokenExpiresAt:  epochMillis(ss.Session.AccessTokenExpiresAt),
			RefreshTokenExpiresAt: epochMillis(ss.Session.RefreshTokenExpiresAt),
		},
		ReceivedAt: epochMillis(ss.ReceivedAt),
	})
}

// looseRecord covers both the current absolute layout and the older layout
// that kept the backend's relative token response.
type looseRecord struct {
	AccessToken           string   `json:"accessToken"`
	RefreshToken          string   `json:"refreshToken"`
	AccessTokenExpiresAt  *float64 `json:"accessTokenExpiresAt"`
	RefreshTokenExpiresAt *float64 `json:"refreshTokenExpiresAt"`

	LegacyAccessToken  string   `json:"access_token"`
	LegacyRefreshToken string   `json:"refresh_token"`
	ExpiresIn          *float64 `json:"expires_in"`
	RefreshExpiresIn   *float64 `json:"refresh_expires_in"`
}

// DecodeStored parses a persisted record. It accepts the StoredSession
// envelope or a bare session, each in the absolute (camelCase, epoch ms) or
// the relative (backend token response) form. Relative lifetimes are anchored
// at receivedAt, or at now when the record has none.
func DecodeStored(data []byte, now time.Time) (StoredSession, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil || top == nil {
		return StoredSession{}, fmt.Errorf("%w: not a JSON object", ErrMalformedSession)
	}

	inner := json.RawMessage(data)
	if raw, ok := top["session"]; ok {
		inner = raw
	}

	receivedAt := now
	if raw, ok := top["receivedAt"]; ok && !isNull(raw) {
		var ms float64
		if err := json.Unmarshal(raw, &ms); err != nil {
			return StoredSession{}, fmt.Errorf("%w: receivedAt: %v", ErrMalformedSession, err)
		}
		receivedAt = fromMillis(ms)
	}

	var rec looseRecord
	if isNull(inner) {
		return StoredSession{}, fmt.Errorf("%w: empty session", ErrMalformedSession)
	}
	if err := json.Unmarshal(inner, &rec); err != nil {
		return StoredSession{}, fmt.Errorf("%w: %v", ErrMalformedSession, err)
	}

	var s Session
	switch {
	case rec.AccessToken != "":
		if rec.AccessTokenExpiresAt == nil {
			return StoredSession{}, fmt.Errorf("%w: missing accessTokenExpiresAt", ErrMalformedSession)
		}
		s = Session{
			AccessToken:          rec.AccessToken,
			RefreshToken:         rec.RefreshToken,
			AccessTokenExpiresAt: fromMillis(*rec.AccessTokenExpiresAt),
		}
		if rec.RefreshTokenExpiresAt != nil {
			s.RefreshTokenExpiresAt = fromMillis(*rec.RefreshTokenExpiresAt)
		}
	case rec.LegacyAccessToken != "":
		if rec.ExpiresIn == nil {
			return StoredSession{}, fmt.Errorf("%w: missing expires_in", ErrMalformedSession)
		}
		s = Session{
			AccessToken:          rec.LegacyAccessToken,
			RefreshToken:         rec.LegacyRefreshToken,
			AccessTokenExpiresAt: receivedAt.Add(secondsF(*rec.ExpiresIn)),
		}
		if rec.RefreshExpiresIn != nil {
			s.RefreshTokenExpiresAt = receivedAt.Add(secondsF(*rec.RefreshExpiresIn))
		}
	default:
		return StoredSession{}, fmt.Errorf("%w: no access token", ErrMalformedSession)
	}

	return StoredSession{Session: s, ReceivedAt: receivedAt}, nil
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func epochMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms float64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(math.Round(ms)))
}

func secondsF(n float64) time.Duration {
	if n > float64(maxSeconds) {
		return seconds(maxSeconds)
	}
	return time.Duration(n * float64(time.Second))
}
