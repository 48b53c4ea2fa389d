package channels

import (
	goslack "github.com/slack-go/slack"
)

// buildBlocks renders a Message into Block Kit blocks, truncating each
// text element to the limit Slack documents for its kind.
func buildBlocks(msg Message) []goslack.Block {
	var blocks []goslack.Block

	if msg.HeaderText != "" {
		blocks = append(blocks, goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, truncate(msg.HeaderText, slackHeaderTextLimit), false, false),
			nil, nil,
		))
	}

	if len(msg.Fields) > 0 {
		var objs []*goslack.TextBlockObject
		for _, f := range msg.Fields {
			objs = append(objs, goslack.NewTextBlockObject(goslack.MarkdownType,
				truncate(f.Label, slackFieldTextLimit)+": "+truncate(f.Value, slackFieldTextLimit), false, false))
		}
		blocks = append(blocks, goslack.NewSectionBlock(nil, objs, nil))
	}

	if msg.ButtonText != "" && msg.ButtonURL != "" {
		btn := goslack.NewButtonBlockElement("", truncate(msg.ButtonURL, slackButtonValueLimit),
			goslack.NewTextBlockObject(goslack.PlainTextType, truncate(msg.ButtonText, slackButtonTextLimit), false, false))
		btn.URL = msg.ButtonURL
		blocks = append(blocks, goslack.NewActionBlock("", btn))
	}

	return blocks
}
