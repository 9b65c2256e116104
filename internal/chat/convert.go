package chat

import (
	"strings"

	"github.com/matheus3301/clinicchat/internal/ledger"
	"github.com/matheus3301/clinicchat/internal/wire"
)

func fromWire(wm wire.Message) ledger.Message {
	return ledger.Message{
		ID:          wm.ID,
		Text:        wm.Text,
		SenderID:    wm.SenderID,
		SenderName:  wm.SenderName,
		SenderRole:  wm.SenderRole,
		RecipientID: wm.RecipientID,
		Timestamp:   wm.Timestamp,
		Read:        wm.Read,
	}
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
