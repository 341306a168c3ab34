package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"posreports/internal/core"
)

// RefreshMessage asks the worker to reload one sheet, or every sheet when
// SheetType is "all".
type RefreshMessage struct {
	ID          string    `json:"id"`
	SheetType   string    `json:"sheet_type"`
	RequestedAt time.Time `json:"requested_at"`
}

func NewRefreshMessage(sheetType string) *RefreshMessage {
	return &RefreshMessage{
		ID:          uuid.NewString(),
		SheetType:   sheetType,
		RequestedAt: time.Now().UTC(),
	}
}

// Sheets expands the requested selection.
func (m *RefreshMessage) Sheets() ([]core.SheetType, error) {
	return core.ParseSheetSelection(m.SheetType)
}

func (m *RefreshMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RefreshMessageFromJSON decodes and validates a refresh message.
func RefreshMessageFromJSON(data []byte) (*RefreshMessage, error) {
	var msg RefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode refresh message: %w", err)
	}
	if _, err := msg.Sheets(); err != nil {
		return nil, err
	}
	return &msg, nil
}
