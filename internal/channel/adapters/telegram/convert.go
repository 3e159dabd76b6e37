package telegram

import (
	"encoding/json"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/memohai/tgmirror/internal/channel"
)

// polledUpdate is one getUpdates item. Post is nil for updates that are
// not channel posts; their id still advances the offset.
type polledUpdate struct {
	ID   int
	Post *channel.IncomingMessage
}

// updateFlags captures fields the library's Update type does not decode.
type updateFlags struct {
	ChannelPost *struct {
		Sticker *struct {
			IsVideo bool `json:"is_video"`
		} `json:"sticker"`
	} `json:"channel_post"`
}

func decodeUpdates(raw json.RawMessage, render bool) ([]polledUpdate, error) {
	var updates []tgbotapi.Update
	if err := json.Unmarshal(raw, &updates); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}
	var flags []updateFlags
	if err := json.Unmarshal(raw, &flags); err != nil {
		return nil, fmt.Errorf("decode update flags: %w", err)
	}
	out := make([]polledUpdate, 0, len(updates))
	for i, u := range updates {
		item := polledUpdate{ID: u.UpdateID}
		if u.ChannelPost != nil {
			isVideo := false
			if i < len(flags) && flags[i].ChannelPost != nil && flags[i].ChannelPost.Sticker != nil {
				isVideo = flags[i].ChannelPost.Sticker.IsVideo
			}
			post := convertPost(u.ChannelPost, isVideo, render)
			item.Post = &post
		}
		out = append(out, item)
	}
	return out, nil
}

func convertPost(msg *tgbotapi.Message, stickerIsVideo, render bool) channel.IncomingMessage {
	text, entities := msg.Text, msg.Entities
	if text == "" {
		text, entities = msg.Caption, msg.CaptionEntities
	}
	if render {
		text = renderEntities(text, entities)
	}
	out := channel.IncomingMessage{
		MessageID:  msg.MessageID,
		Text:       text,
		ReceivedAt: time.Unix(int64(msg.Date), 0).UTC(),
	}
	if msg.Chat != nil {
		out.ChannelID = channel.ChannelID(msg.Chat.ID)
	}
	for _, p := range msg.Photo {
		out.Photo = append(out.Photo, channel.PhotoVariant{
			FileID:   p.FileID,
			UniqueID: p.FileUniqueID,
			Width:    p.Width,
			Height:   p.Height,
			Size:     int64(p.FileSize),
		})
	}
	if a := msg.Audio; a != nil {
		out.Audio = &channel.MediaFile{FileID: a.FileID, UniqueID: a.FileUniqueID, FileName: a.FileName, MimeType: a.MimeType, Size: int64(a.FileSize)}
	}
	if d := msg.Document; d != nil {
		out.Document = &channel.MediaFile{FileID: d.FileID, UniqueID: d.FileUniqueID, FileName: d.FileName, MimeType: d.MimeType, Size: int64(d.FileSize)}
	}
	if v := msg.Video; v != nil {
		out.Video = &channel.MediaFile{FileID: v.FileID, UniqueID: v.FileUniqueID, FileName: v.FileName, MimeType: v.MimeType, Size: int64(v.FileSize)}
	}
	if a := msg.Animation; a != nil {
		out.Animation = &channel.MediaFile{FileID: a.FileID, UniqueID: a.FileUniqueID, FileName: a.FileName, MimeType: a.MimeType, Size: int64(a.FileSize)}
	}
	if s := msg.Sticker; s != nil {
		out.Sticker = &channel.Sticker{
			FileID:     s.FileID,
			UniqueID:   s.FileUniqueID,
			IsAnimated: s.IsAnimated,
			IsVideo:    stickerIsVideo,
			Size:       int64(s.FileSize),
		}
	}
	return out
}
