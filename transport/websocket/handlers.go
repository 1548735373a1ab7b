package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rocketscienceinc/dotsandboxes-backend/internal/apperror"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/broadcast"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/entity"
)

func (that *Server) handleConnect(_ context.Context, client *Client, msg *Message) error {
	var payload ConnectPayload
	if err := decode(msg, &payload); err != nil {
		return err
	}

	if payload.Player == nil {
		return fmt.Errorf("%w: player is required", apperror.ErrInvalidPayload)
	}

	userID, _ := client.User()
	if payload.Player.ID != "" {
		userID = payload.Player.ID
	}

	client.setUser(userID, payload.Player.Name)
	client.reply(msg.Action, ConnectPayload{Player: &Player{ID: userID, Name: payload.Player.Name}})

	that.logger.Info("player connected", "client_id", client.ID(), "user_id", userID)

	return nil
}

func (that *Server) handleCreateMatch(ctx context.Context, client *Client, msg *Message) error {
	var payload CreateMatchPayload
	if err := decode(msg, &payload); err != nil {
		return err
	}

	userID, _ := client.User()

	match, err := that.matches.CreateMatch(ctx, userID, payload.N, payload.M)
	if err != nil {
		return err
	}

	that.rooms.Join(broadcast.Room(match.PublicIDOrEmpty()), client)
	client.reply(msg.Action, MatchPayload{MatchID: match.PublicIDOrEmpty()})

	return that.sendState(ctx, client, match.ID)
}

// handleJoinMatch - joins the room first so the state broadcast by the join reaches this client.
func (that *Server) handleJoinMatch(ctx context.Context, client *Client, msg *Message) error {
	var payload MatchPayload
	if err := decode(msg, &payload); err != nil {
		return err
	}

	match, err := that.matches.Resolve(ctx, payload.MatchID)
	if err != nil {
		return err
	}

	room := broadcast.Room(match.PublicIDOrEmpty())
	that.rooms.Join(room, client)

	userID, _ := client.User()
	if _, err = that.matches.JoinMatch(ctx, userID, match.ID); err != nil {
		that.rooms.Leave(room, client.ID())
		return err
	}

	client.reply(msg.Action, MatchPayload{MatchID: match.PublicIDOrEmpty()})

	return nil
}

// handleSubscribe - watches a match without taking a seat.
func (that *Server) handleSubscribe(ctx context.Context, client *Client, msg *Message) error {
	var payload MatchPayload
	if err := decode(msg, &payload); err != nil {
		return err
	}

	match, err := that.matches.Resolve(ctx, payload.MatchID)
	if err != nil {
		return err
	}

	that.rooms.Join(broadcast.Room(match.PublicIDOrEmpty()), client)

	return that.sendState(ctx, client, match.ID)
}

// handleMove - refusals go back as game:moveRejected, accepted moves reach everyone through the room.
func (that *Server) handleMove(ctx context.Context, client *Client, msg *Message) error {
	var payload MovePayload
	if err := decode(msg, &payload); err != nil {
		client.reply(broadcast.EventMoveRejected, MoveRejectedPayload{Reason: apperror.Reason(err)})
		return nil
	}

	userID, _ := client.User()

	var err error
	if payload.Edge == nil {
		err = fmt.Errorf("%w: edge is required", apperror.ErrInvalidPayload)
	} else {
		_, err = that.matches.MakeMove(ctx, userID, payload.MatchID, *payload.Edge)
	}

	if err != nil {
		reason := apperror.Reason(err)
		if reason == apperror.ReasonInternal {
			that.logger.Error("failed to make move", "user_id", userID, "match_id", payload.MatchID, "error", err)
		}

		client.reply(broadcast.EventMoveRejected, MoveRejectedPayload{
			MatchID:   payload.MatchID,
			ClientSeq: payload.ClientSeq,
			Reason:    reason,
		})
	}

	return nil
}

func (that *Server) handleRematchPropose(ctx context.Context, client *Client, msg *Message) error {
	var payload MatchPayload
	if err := decode(msg, &payload); err != nil {
		return err
	}

	userID, name := client.User()

	rematch, err := that.rematches.ProposeRematch(ctx, userID, name, payload.MatchID)
	if err != nil {
		return err
	}

	that.rooms.Join(broadcast.Room(rematch.NewPublicID), client)
	client.reply(msg.Action, newRematchPayload(rematch))

	return nil
}

func (that *Server) handleRematchRespond(ctx context.Context, client *Client, msg *Message) error {
	var payload RematchRespondPayload
	if err := decode(msg, &payload); err != nil {
		return err
	}

	userID, _ := client.User()

	rematch, err := that.rematches.RespondToRematch(ctx, userID, payload.MatchID, payload.Decision)
	if err != nil {
		return err
	}

	client.reply(msg.Action, newRematchPayload(rematch))

	if rematch.Status != entity.RematchAccepted {
		return nil
	}

	that.rooms.Join(broadcast.Room(rematch.NewPublicID), client)

	return that.sendState(ctx, client, rematch.NewMatchID)
}

func (that *Server) sendState(ctx context.Context, client *Client, matchID string) error {
	snapshot, err := that.matches.GetState(ctx, matchID)
	if err != nil {
		return err
	}

	client.reply(broadcast.EventState, snapshot)

	return nil
}

func decode(msg *Message, target any) error {
	if len(msg.Payload) == 0 {
		return fmt.Errorf("%w: payload is required", apperror.ErrInvalidPayload)
	}

	if err := json.Unmarshal(msg.Payload, target); err != nil {
		return fmt.Errorf("%w: %w", apperror.ErrInvalidPayload, err)
	}

	return nil
}
