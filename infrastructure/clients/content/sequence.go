package content

import (
	"context"
	"strings"

	"crm-social/domain/model"
	"crm-social/infrastructure/logger"
)

// TextSender sends a text message to the current recipient.
type TextSender func(ctx context.Context, text string) (*model.SendMessageResult, error)

// AttachmentSender sends a single attachment to the current recipient.
type AttachmentSender func(ctx context.Context, att model.Attachment) (*model.SendMessageResult, error)

// SendSequence sends the text (when present) and then every attachment as a
// separate call. Only the last call's outcome is returned; earlier outcomes are
// logged and otherwise discarded.
func SendSequence(ctx context.Context, platform model.Platform, text string, attachments []model.Attachment,
	sendText TextSender, sendAttachment AttachmentSender) (*model.SendMessageResult, error) {
	text = strings.TrimSpace(text)
	if text == "" && len(attachments) == 0 {
		return nil, model.MissingParameter(platform, "content", "attachments")
	}

	var (
		res *model.SendMessageResult
		err error
	)
	step := 0
	record := func(r *model.SendMessageResult, e error) {
		if step > 0 && err != nil {
			logger.GetLogger().WithField("platform", platform).WithField("step", step).WithField("error", err).
				Warn("message part failed, continuing with next part")
		}
		res, err = r, e
		step++
	}

	if text != "" {
		record(sendText(ctx, text))
	}
	for _, att := range attachments {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if att.URL == "" {
			record(nil, model.MissingParameter(platform, "attachment.url"))
			continue
		}
		record(sendAttachment(ctx, att))
	}
	return res, err
}
