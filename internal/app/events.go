package app

import (
	"fmt"
	"strings"

	abci "github.com/cometbft/cometbft/abci/types"

	"github.com/Cript/game-rps/internal/rps"
)

const (
	EventSessionCreated  = "SessionCreated"
	EventSessionJoined   = "SessionJoined"
	EventCommitAdded     = "CommitmentAdded"
	EventChoiceRevealed  = "ChoiceRevealed"
	eventAttrSessionID   = "sessionId"
	eventAttrParticipant = "participant"
	eventAttrSeq         = "seq"
)

func notificationEvents(notifs []rps.Notification) []abci.Event {
	if len(notifs) == 0 {
		return nil
	}
	events := make([]abci.Event, 0, len(notifs))
	for _, n := range notifs {
		events = append(events, notificationEvent(n))
	}
	return events
}

func notificationEvent(n rps.Notification) abci.Event {
	attrs := []abci.EventAttribute{
		{Key: eventAttrSessionID, Value: n.SessionID.Hex(), Index: true},
	}
	var typ string
	switch n.Kind {
	case rps.NotificationCreate:
		typ = EventSessionCreated
		members := make([]string, 0, len(n.Members))
		for _, m := range n.Members {
			members = append(members, m.Hex())
		}
		attrs = append(attrs,
			abci.EventAttribute{Key: "creator", Value: n.Participant.Hex(), Index: true},
			abci.EventAttribute{Key: "members", Value: strings.Join(members, ","), Index: false},
		)
	case rps.NotificationJoin:
		typ = EventSessionJoined
		attrs = append(attrs, abci.EventAttribute{Key: eventAttrParticipant, Value: n.Participant.Hex(), Index: true})
	case rps.NotificationCommit:
		typ = EventCommitAdded
		attrs = append(attrs, abci.EventAttribute{Key: eventAttrParticipant, Value: n.Participant.Hex(), Index: true})
	case rps.NotificationReveal:
		typ = EventChoiceRevealed
		attrs = append(attrs,
			abci.EventAttribute{Key: eventAttrParticipant, Value: n.Participant.Hex(), Index: true},
			abci.EventAttribute{Key: "choice", Value: n.Choice.String(), Index: false},
		)
	default:
		typ = string(n.Kind)
	}
	attrs = append(attrs, abci.EventAttribute{Key: eventAttrSeq, Value: fmt.Sprintf("%d", n.Seq), Index: true})
	return abci.Event{Type: typ, Attributes: attrs}
}
