package botchan

import (
	"errors"
	"fmt"
	"strconv"

	"teamup/pkg/botui"
)

// Action is the closed set of interactive verbs a button can carry.
// Parsing happens once at the adapter boundary; the router matches
// exhaustively so an unknown verb is answered, never silently dropped.
type Action interface{ isAction() }

// InviteAccept accepts a game invite.
type InviteAccept struct{ GameID int64 }

// InviteDecline declines a game invite.
type InviteDecline struct{ GameID int64 }

// ShowEntity answers with a deep link into the app ("show:game:17").
type ShowEntity struct {
	Kind string
	ID   int64
}

// ReplyPrompt asks the user to reply in a game chat.
type ReplyPrompt struct{ GameID int64 }

// NewCode requests a fresh OTP code.
type NewCode struct{}

func (InviteAccept) isAction()  {}
func (InviteDecline) isAction() {}
func (ShowEntity) isAction()    {}
func (ReplyPrompt) isAction()   {}
func (NewCode) isAction()       {}

// ErrUnknownAction marks callback data whose verb is outside the closed set.
var ErrUnknownAction = errors.New("botchan: unknown action")

const (
	verbInviteAccept  = "inv_acc"
	verbInviteDecline = "inv_dec"
	verbShow          = "show"
	verbReply         = "reply"
	verbNewCode       = "otp_new"
)

// EncodeAction packs an action into "verb:id[:extra]" callback data.
func EncodeAction(a Action) (string, error) {
	switch v := a.(type) {
	case InviteAccept:
		return botui.Pack(verbInviteAccept, strconv.FormatInt(v.GameID, 10), "")
	case InviteDecline:
		return botui.Pack(verbInviteDecline, strconv.FormatInt(v.GameID, 10), "")
	case ShowEntity:
		return botui.Pack(verbShow, v.Kind, strconv.FormatInt(v.ID, 10))
	case ReplyPrompt:
		return botui.Pack(verbReply, strconv.FormatInt(v.GameID, 10), "")
	case NewCode:
		return botui.Pack(verbNewCode, "0", "")
	default:
		return "", fmt.Errorf("%w: %T", ErrUnknownAction, a)
	}
}

// ParseAction is the inverse of EncodeAction.
func ParseAction(data string) (Action, error) {
	verb, id, extra, err := botui.Split(data)
	if err != nil {
		return nil, err
	}
	switch verb {
	case verbInviteAccept:
		gid, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("botchan: bad game id %q", id)
		}
		return InviteAccept{GameID: gid}, nil
	case verbInviteDecline:
		gid, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("botchan: bad game id %q", id)
		}
		return InviteDecline{GameID: gid}, nil
	case verbShow:
		eid, err := strconv.ParseInt(extra, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("botchan: bad entity id %q", extra)
		}
		return ShowEntity{Kind: id, ID: eid}, nil
	case verbReply:
		gid, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("botchan: bad game id %q", id)
		}
		return ReplyPrompt{GameID: gid}, nil
	case verbNewCode:
		return NewCode{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, verb)
	}
}
