// Package twitchinfra wraps the Helix API calls the deck needs: token
// validation, viewer counts and the latest follower.
package twitchinfra

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/nicklaw5/helix/v2"
)

// Identity is the account a validated token belongs to.
type Identity struct {
	Login    string
	UserID   string
	ClientID string
}

type StreamService struct {
	mu     sync.RWMutex
	client *helix.Client
}

func NewStreamService(clientID, userAccessToken string) (*StreamService, error) {
	client, err := helix.NewClient(&helix.Options{
		ClientID:        clientID,
		UserAccessToken: userAccessToken,
	})
	if err != nil {
		return nil, fmt.Errorf("helix: NewClient: %w", err)
	}

	return &StreamService{client: client}, nil
}

// Validate checks the access token and returns the identity it grants.
func (s *StreamService) Validate(token string) (Identity, error) {
	token = strings.TrimPrefix(strings.TrimSpace(token), "oauth:")
	if token == "" {
		return Identity{}, fmt.Errorf("twitch: empty access token")
	}

	ok, resp, err := s.getClient().ValidateToken(token)
	if err != nil {
		return Identity{}, fmt.Errorf("helix: ValidateToken: %w", err)
	}
	if !ok {
		return Identity{}, fmt.Errorf("twitch: token rejected (%d: %s) %s",
			resp.StatusCode, resp.Error, resp.ErrorMessage)
	}

	return Identity{
		Login:    resp.Data.Login,
		UserID:   resp.Data.UserID,
		ClientID: resp.Data.ClientID,
	}, nil
}

// ViewerCount returns the live viewer count for a channel, zero when the
// channel is offline.
func (s *StreamService) ViewerCount(channel string) (int, error) {
	channel = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(channel), "#"))
	if channel == "" {
		return 0, fmt.Errorf("twitch: empty channel")
	}

	resp, err := s.getClient().GetStreams(&helix.StreamsParams{
		UserLogins: []string{channel},
	})
	if err != nil {
		return 0, fmt.Errorf("helix: GetStreams: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("helix: GetStreams failed (%d: %s) %s",
			resp.StatusCode, resp.Error, resp.ErrorMessage)
	}

	if len(resp.Data.Streams) == 0 {
		return 0, nil
	}
	return resp.Data.Streams[0].ViewerCount, nil
}

// LatestFollower returns the display name of the most recent follower, empty
// when the channel has none.
func (s *StreamService) LatestFollower(broadcasterID string) (string, error) {
	if strings.TrimSpace(broadcasterID) == "" {
		return "", fmt.Errorf("twitch: empty broadcaster id")
	}

	resp, err := s.getClient().GetChannelFollows(&helix.GetChannelFollowsParams{
		BroadcasterID: broadcasterID,
		First:         1,
	})
	if err != nil {
		return "", fmt.Errorf("helix: GetChannelFollows: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("helix: GetChannelFollows failed (%d: %s) %s",
			resp.StatusCode, resp.Error, resp.ErrorMessage)
	}

	if len(resp.Data.Channels) == 0 {
		return "", nil
	}
	return resp.Data.Channels[0].Username, nil
}

// UpdateAccessToken swaps the token after the operator reconfigures the
// platform section.
func (s *StreamService) UpdateAccessToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client.SetUserAccessToken(strings.TrimPrefix(token, "oauth:"))
}

func (s *StreamService) getClient() *helix.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}
