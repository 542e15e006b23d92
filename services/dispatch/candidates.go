package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"servly/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// CandidateSource is the matching collaborator boundary: an ordered list of
// (provider, score) pairs for a booking. The list is consumed front-to-back;
// dedupe against prior offers belongs to the controller, not the matcher.
type CandidateSource interface {
	GetRankedCandidates(ctx context.Context, bookingID string) ([]models.Candidate, error)
}

// RoundInvalidator is implemented by sources that cache per-round lists and
// can drop the cached list when a new escalation round begins.
type RoundInvalidator interface {
	InvalidateRound(ctx context.Context, bookingID string)
}

// HTTPCandidateSource fetches ranked candidates from the matching service.
type HTTPCandidateSource struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPCandidateSource creates a source for the matching service endpoint.
func NewHTTPCandidateSource(baseURL string) *HTTPCandidateSource {
	return &HTTPCandidateSource{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *HTTPCandidateSource) GetRankedCandidates(ctx context.Context, bookingID string) ([]models.Candidate, error) {
	endpoint := fmt.Sprintf("%s/api/matching/rank?bookingId=%s", s.BaseURL, url.QueryEscape(bookingID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build matching request: %w", err)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("matching service unavailable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("matching service returned status %d", resp.StatusCode)
	}

	var out struct {
		Candidates []models.Candidate `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode matching response: %w", err)
	}
	return out.Candidates, nil
}

// CachedCandidateSource caches each escalation round's list in Redis so one
// round consumes one matcher call, and retries transient fetch failures with
// backoff before giving up on the round.
type CachedCandidateSource struct {
	Inner  CandidateSource
	Cache  *redis.Client
	TTL    time.Duration
	Logger *zap.Logger
}

const candidateCacheKeyPrefix = "candidates:"

func (s *CachedCandidateSource) GetRankedCandidates(ctx context.Context, bookingID string) ([]models.Candidate, error) {
	key := candidateCacheKeyPrefix + bookingID
	if raw, err := s.Cache.Get(ctx, key).Result(); err == nil {
		var cached []models.Candidate
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			return cached, nil
		}
	}

	var candidates []models.Candidate
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		candidates, err = s.Inner.GetRankedCandidates(ctx, bookingID)
		if err == nil {
			break
		}
		s.Logger.Warn("candidate fetch failed",
			zap.String("booking_id", bookingID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt < 3 {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
	}
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(candidates); err == nil {
		if err := s.Cache.Set(ctx, key, raw, s.TTL).Err(); err != nil {
			s.Logger.Warn("candidate cache write failed",
				zap.String("booking_id", bookingID), zap.Error(err))
		}
	}
	return candidates, nil
}

// InvalidateRound drops the cached list so the next round fetches fresh
// rankings.
func (s *CachedCandidateSource) InvalidateRound(ctx context.Context, bookingID string) {
	if err := s.Cache.Del(ctx, candidateCacheKeyPrefix+bookingID).Err(); err != nil {
		s.Logger.Warn("candidate cache invalidation failed",
			zap.String("booking_id", bookingID), zap.Error(err))
	}
}
