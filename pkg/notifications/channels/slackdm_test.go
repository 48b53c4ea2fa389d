package channels

import (
	"context"
	"testing"

	goslack "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSlackPoster struct {
	openedFor     string
	postedChannel string
	postedText    string
	postedBlocks  []goslack.Block
	openErr       error
	postErr       error
}

func (f *fakeSlackPoster) OpenDM(ctx context.Context, slackUserID string) (string, error) {
	f.openedFor = slackUserID
	if f.openErr != nil {
		return "", f.openErr
	}
	return "D123", nil
}

func (f *fakeSlackPoster) PostMessage(ctx context.Context, channelID, text string, blocks []goslack.Block) error {
	f.postedChannel = channelID
	f.postedText = text
	f.postedBlocks = blocks
	return f.postErr
}

func TestSlackDMOpensThenPosts(t *testing.T) {
	poster := &fakeSlackPoster{}
	d := NewSlackDM(poster)

	err := d.Deliver(context.Background(), Message{SlackUserID: "U1", Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "U1", poster.openedFor)
	assert.Equal(t, "D123", poster.postedChannel)
	assert.Equal(t, "hello", poster.postedText)
}

func TestSlackDMRequiresSlackUserID(t *testing.T) {
	d := NewSlackDM(&fakeSlackPoster{})
	err := d.Deliver(context.Background(), Message{Text: "hello"})
	assert.Error(t, err)
}

func TestSlackChannelPostsWithoutDMResolution(t *testing.T) {
	poster := &fakeSlackPoster{}
	c := NewSlackChannel(poster)

	err := c.Deliver(context.Background(), Message{SlackChannelID: "C1", Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "C1", poster.postedChannel)
}
