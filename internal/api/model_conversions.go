package api

import (
	"deepchat-backend/internal/history"
	"deepchat-backend/pkg/api"
)

func toAPIMessage(msg history.Message) api.ChatMessage {
	out := api.ChatMessage{
		ID:               msg.ID,
		Text:             msg.Text,
		IsUser:           msg.IsUser,
		ReasoningContent: msg.ReasoningContent,
		CreatedAt:        msg.CreatedAt,
	}
	if msg.AttachedFile != nil {
		out.AttachedFile = &api.AttachedFile{
			FileID:   msg.AttachedFile.FileID,
			FileName: msg.AttachedFile.FileName,
			FileURL:  msg.AttachedFile.FileURL,
		}
	}
	return out
}

func fromAPIMessage(msg api.ChatMessage) history.Message {
	out := history.Message{
		ID:               msg.ID,
		Text:             msg.Text,
		IsUser:           msg.IsUser,
		ReasoningContent: msg.ReasoningContent,
		CreatedAt:        msg.CreatedAt,
	}
	if msg.AttachedFile != nil {
		out.AttachedFile = &history.AttachedFile{
			FileID:   msg.AttachedFile.FileID,
			FileName: msg.AttachedFile.FileName,
			FileURL:  msg.AttachedFile.FileURL,
		}
	}
	return out
}

func fromAPIMessages(msgs []api.ChatMessage) []history.Message {
	out := make([]history.Message, len(msgs))
	for i, msg := range msgs {
		out[i] = fromAPIMessage(msg)
	}
	return out
}

func toAPIConversation(conv history.Conversation) api.Conversation {
	messages := make([]api.ChatMessage, len(conv.Messages))
	for i, msg := range conv.Messages {
		messages[i] = toAPIMessage(msg)
	}

	return api.Conversation{
		ID:        conv.ID,
		Title:     conv.Title,
		Messages:  messages,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	}
}
