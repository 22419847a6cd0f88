package livekit

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	"github.com/stretchr/testify/require"

	"github.com/multispeaker/backend/pkg/apperr"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(Config{
		URL:       "ws://localhost:7880",
		APIKey:    "devkey",
		APISecret: "devsecret-devsecret-devsecret-32",
		TokenTTL:  6 * time.Hour,
	}, nil)
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(Config{URL: "ws://localhost:7880"}, nil)
	require.Error(t, err)
}

func TestIssueToken(t *testing.T) {
	c := testClient(t)

	token, err := c.IssueToken("room-1", "user-1", "Alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// The token must verify against the signing secret and carry the room
	// grant and identity.
	v, err := auth.ParseAPIToken(token)
	require.NoError(t, err)
	require.Equal(t, "devkey", v.APIKey())
	claims, err := v.Verify("devsecret-devsecret-devsecret-32")
	require.NoError(t, err)
	require.Equal(t, "user-1", v.Identity())
	require.Equal(t, "room-1", claims.Video.Room)
	require.True(t, claims.Video.RoomJoin)
}

func TestIssueTokenIsFreshPerCall(t *testing.T) {
	c := testClient(t)

	a, err := c.IssueToken("room-1", "user-1", "Alice")
	require.NoError(t, err)
	b, err := c.IssueToken("room-1", "user-1", "Alice")
	require.NoError(t, err)
	require.Equal(t, 3, len(strings.Split(a, ".")))
	require.Equal(t, 3, len(strings.Split(b, ".")))
}

func TestHTTPURLFromWS(t *testing.T) {
	require.Equal(t, "http://localhost:7880", httpURLFromWS("ws://localhost:7880"))
	require.Equal(t, "https://lk.example.com", httpURLFromWS("wss://lk.example.com"))
	require.Equal(t, "https://lk.example.com", httpURLFromWS("https://lk.example.com"))
}

func TestUpdateFromEgressInfo(t *testing.T) {
	u := UpdateFromEgressInfo(&livekit.EgressInfo{
		EgressId: "EG_1",
		Status:   livekit.EgressStatus_EGRESS_COMPLETE,
		FileResults: []*livekit.FileInfo{{
			Size:     102400,
			Duration: int64(37 * time.Second),
		}},
	})
	require.True(t, u.Completed)
	require.False(t, u.Failed)
	require.Equal(t, int64(102400), u.SizeBytes)
	require.Equal(t, 37, u.DurationSec)

	u = UpdateFromEgressInfo(&livekit.EgressInfo{
		EgressId: "EG_2",
		Status:   livekit.EgressStatus_EGRESS_FAILED,
		Error:    "room closed",
	})
	require.True(t, u.Failed)
	require.Equal(t, "room closed", u.ErrorMsg)

	u = UpdateFromEgressInfo(&livekit.EgressInfo{
		EgressId: "EG_3",
		Status:   livekit.EgressStatus_EGRESS_ABORTED,
	})
	require.True(t, u.Failed)

	u = UpdateFromEgressInfo(&livekit.EgressInfo{
		EgressId: "EG_4",
		Status:   livekit.EgressStatus_EGRESS_ACTIVE,
	})
	require.False(t, u.Completed)
	require.False(t, u.Failed)
}

func TestWrapUpstreamCarriesServerReason(t *testing.T) {
	cause := errors.New("twirp error not_found: requested room does not exist")
	err := wrapUpstream("media server rejected start-egress", cause)

	require.Equal(t, apperr.CodeUpstream, apperr.CodeOf(err))
	require.Contains(t, apperr.MessageOf(err), "media server rejected start-egress")
	require.Contains(t, apperr.MessageOf(err), "requested room does not exist")
	require.True(t, errors.Is(err, cause))
}
