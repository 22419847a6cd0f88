// Package livekit fronts the media server: it mints signed join tokens and
// drives per-participant egress. It holds no local state; every failure is
// surfaced as a typed application error the caller can retry on.
package livekit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"go.uber.org/zap"

	"github.com/multispeaker/backend/pkg/apperr"
)

// Config holds media server connection and token settings.
type Config struct {
	URL         string // ws(s):// URL, also handed to clients
	APIKey      string
	APISecret   string
	TokenTTL    time.Duration
	CallTimeout time.Duration
}

// EgressUpdate is the client-facing view of an egress state report, either
// from a stop acknowledgement or a webhook notification.
type EgressUpdate struct {
	EgressID    string
	Completed   bool
	Failed      bool
	ErrorMsg    string
	SizeBytes   int64
	DurationSec int
}

// S3Target tells the media server where to write the recorded track.
type S3Target struct {
	AccessKey string
	Secret    string
	Region    string
	Bucket    string
}

// Client issues access tokens and controls egress against one LiveKit
// deployment.
type Client struct {
	cfg    Config
	egress *lksdk.EgressClient
	logger *zap.Logger
}

// NewClient creates a media server client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, apperr.New(apperr.CodeTokenIssuance, "media server credentials not configured")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 6 * time.Hour
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		egress: lksdk.NewEgressClient(httpURLFromWS(cfg.URL), cfg.APIKey, cfg.APISecret),
		logger: logger,
	}, nil
}

// wrapUpstream classifies a media server API failure, folding the server's
// reason into the caller-facing message.
func wrapUpstream(message string, err error) error {
	return apperr.Wrap(apperr.CodeUpstream, fmt.Sprintf("%s: %v", message, err), err)
}

func httpURLFromWS(url string) string {
	if strings.HasPrefix(url, "ws://") {
		return strings.Replace(url, "ws://", "http://", 1)
	}
	if strings.HasPrefix(url, "wss://") {
		return strings.Replace(url, "wss://", "https://", 1)
	}
	return url
}

// URL returns the websocket URL clients connect to.
func (c *Client) URL() string { return c.cfg.URL }

// IssueToken mints a signed join token encoding room id, participant
// identity and an expiry. Tokens are never cached; each call issues fresh.
func (c *Client) IssueToken(roomID, identity, displayName string) (string, error) {
	grantPublish := true
	grantSubscribe := true
	at := auth.NewAccessToken(c.cfg.APIKey, c.cfg.APISecret).
		SetIdentity(identity).
		SetName(displayName).
		SetValidFor(c.cfg.TokenTTL).
		AddGrant(&auth.VideoGrant{
			Room:         roomID,
			RoomJoin:     true,
			CanPublish:   &grantPublish,
			CanSubscribe: &grantSubscribe,
		})
	token, err := at.ToJWT()
	if err != nil {
		return "", apperr.Wrap(apperr.CodeTokenIssuance, "failed to sign access token", err)
	}
	return token, nil
}

// StartParticipantEgress instructs the media server to record one
// participant's audio to the given object-store path. Runs under the
// configured call timeout; no local lock is held while awaiting.
func (c *Client) StartParticipantEgress(ctx context.Context, roomID, identity, path string, target S3Target) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	info, err := c.egress.StartParticipantEgress(ctx, &livekit.ParticipantEgressRequest{
		RoomName: roomID,
		Identity: identity,
		FileOutputs: []*livekit.EncodedFileOutput{{
			FileType: livekit.EncodedFileType_OGG,
			Filepath: path,
			Output: &livekit.EncodedFileOutput_S3{
				S3: &livekit.S3Upload{
					AccessKey: target.AccessKey,
					Secret:    target.Secret,
					Region:    target.Region,
					Bucket:    target.Bucket,
				},
			},
		}},
	})
	if err != nil {
		return "", wrapUpstream("media server rejected start-egress", err)
	}
	c.logger.Info("egress started",
		zap.String("egress_id", info.EgressId),
		zap.String("room_id", roomID),
		zap.String("identity", identity))
	return info.EgressId, nil
}

// StopEgress asks the media server to stop an egress. The acknowledgement
// may already carry final file results; otherwise they arrive via webhook.
func (c *Client) StopEgress(ctx context.Context, egressID string) (*EgressUpdate, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	info, err := c.egress.StopEgress(ctx, &livekit.StopEgressRequest{EgressId: egressID})
	if err != nil {
		return nil, wrapUpstream("media server rejected stop-egress", err)
	}
	return UpdateFromEgressInfo(info), nil
}

// UpdateFromEgressInfo maps a media server egress report onto the
// client-facing update. Duration is reported in nanoseconds by the server.
func UpdateFromEgressInfo(info *livekit.EgressInfo) *EgressUpdate {
	u := &EgressUpdate{EgressID: info.EgressId, ErrorMsg: info.Error}
	switch info.Status {
	case livekit.EgressStatus_EGRESS_COMPLETE:
		u.Completed = true
	case livekit.EgressStatus_EGRESS_FAILED, livekit.EgressStatus_EGRESS_ABORTED:
		u.Failed = true
	}
	if len(info.FileResults) > 0 {
		f := info.FileResults[0]
		u.SizeBytes = f.Size
		u.DurationSec = int(time.Duration(f.Duration).Seconds())
	}
	return u
}
