package api

import (
	"context"
	"net/http"
	"time"

	"raharpa/internal/models"
)

// Chat sends may carry file uploads, so they get the longest bound.
const chatTimeout = 15 * time.Second

// OutgoingMessage is a message about to be sent into a chat thread.
type OutgoingMessage struct {
	Sender models.Sender
	Text   string
	File   *FileUpload
}

// ChatAPI is the request/response surface for the chat resource.
type ChatAPI interface {
	AdminThreads(ctx context.Context) ([]models.Chat, error)
	UserThread(ctx context.Context, userID string) (*models.Chat, error)
	Messages(ctx context.Context, chatID string) ([]models.Message, error)
	SendMessage(ctx context.Context, chatID, userID string, msg OutgoingMessage) (*models.Message, error)
	Upload(ctx context.Context, file *FileUpload) (string, error)
	MarkRead(ctx context.Context, chatID string) error
}

// ChatClient implements ChatAPI against the backend /chat endpoints.
type ChatClient struct {
	base *Client
}

var _ ChatAPI = (*ChatClient)(nil)

// NewChatClient creates the chat resource client.
func NewChatClient(base *Client) *ChatClient {
	return &ChatClient{base: base}
}

// AdminThreads fetches every conversation thread for the admin inbox,
// falling back to an empty collection on failure.
func (c *ChatClient) AdminThreads(ctx context.Context) ([]models.Chat, error) {
	ctx, cancel := context.WithTimeout(ctx, chatTimeout)
	defer cancel()

	var threads []models.Chat
	if err := c.base.do(ctx, http.MethodGet, "/chat/admin", nil, &threads); err != nil {
		c.base.log.Sugar().Warnf("Failed to list chat threads: %s", err)
		return []models.Chat{}, err
	}
	return threads, nil
}

// UserThread fetches (or lazily creates, on the backend side) the single
// thread belonging to a user.
func (c *ChatClient) UserThread(ctx context.Context, userID string) (*models.Chat, error) {
	ctx, cancel := context.WithTimeout(ctx, chatTimeout)
	defer cancel()

	var thread models.Chat
	if err := c.base.do(ctx, http.MethodGet, "/chat/user/"+userID, nil, &thread); err != nil {
		return nil, err
	}
	return &thread, nil
}

// Messages fetches the messages of one thread, falling back to an empty
// collection on failure.
func (c *ChatClient) Messages(ctx context.Context, chatID string) ([]models.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, chatTimeout)
	defer cancel()

	var messages []models.Message
	if err := c.base.do(ctx, http.MethodGet, "/chat/"+chatID+"/messages", nil, &messages); err != nil {
		c.base.log.Sugar().Warnf("Failed to fetch messages for chat %s: %s", chatID, err)
		return []models.Message{}, err
	}
	return messages, nil
}

// SendMessage appends a message to a thread. A message carrying a file goes
// up as multipart form data; a plain text message as JSON. The confirmed
// message with its server-assigned identifier comes back in the response.
func (c *ChatClient) SendMessage(ctx context.Context, chatID, userID string, msg OutgoingMessage) (*models.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, chatTimeout)
	defer cancel()

	path := "/chat/" + chatID + "/send/" + userID
	var sent models.Message
	if msg.File != nil {
		fields := map[string]string{
			"sender": string(msg.Sender),
			"text":   msg.Text,
		}
		if err := c.base.doMultipart(ctx, http.MethodPost, path, fields, msg.File, &sent); err != nil {
			return nil, err
		}
	} else {
		payload := map[string]string{
			"sender": string(msg.Sender),
			"text":   msg.Text,
		}
		if err := c.base.do(ctx, http.MethodPost, path, payload, &sent); err != nil {
			return nil, err
		}
	}

	c.base.broadcast(models.EventNewMessage, map[string]any{
		"chatId":  chatID,
		"message": sent,
	})
	return &sent, nil
}

// Upload pushes a standalone file and returns the URL the backend stored it
// under.
func (c *ChatClient) Upload(ctx context.Context, file *FileUpload) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, chatTimeout)
	defer cancel()

	var data struct {
		URL string `json:"url"`
	}
	if err := c.base.doMultipart(ctx, http.MethodPost, "/chat/upload", nil, file, &data); err != nil {
		return "", err
	}
	return data.URL, nil
}

// MarkRead marks every message of a thread as read.
func (c *ChatClient) MarkRead(ctx context.Context, chatID string) error {
	ctx, cancel := context.WithTimeout(ctx, chatTimeout)
	defer cancel()

	if err := c.base.do(ctx, http.MethodPut, "/chat/status/"+chatID, nil, nil); err != nil {
		return err
	}
	c.base.broadcast(models.EventChatUpdated, map[string]string{"chatId": chatID})
	return nil
}
