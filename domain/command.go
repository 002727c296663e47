package domain

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// SendMessageCommand is a send intent coming from a connection or the REST API.
type SendMessageCommand struct {
	SenderID      UserID      `validate:"required"`
	ReceiverID    UserID      `validate:"required"`
	Content       string      `validate:"required_if=Type text"`
	Type          MessageType `validate:"required,oneof=text image audio video document"`
	FileURL       string      `validate:"omitempty,uri"`
	CorrelationID string      `validate:"omitempty,max=128"`
}

func (c SendMessageCommand) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Type.IsMedia() && c.FileURL == "" {
		return fmt.Errorf("%s message requires a file url", c.Type)
	}
	return nil
}
