package engine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ggstudio/mapveto/internal/veto"
)

// VoteResult reports a vote and, when it closed the round, the resolution
// outcome.
type VoteResult struct {
	Session       veto.Session     `json:"session"`
	Vote          veto.Vote        `json:"vote"`
	RoundResolved bool             `json:"roundResolved"`
	Banned        *veto.SessionMap `json:"banned,omitempty"`
	Completed     bool             `json:"completed"`
	Winner        *veto.SessionMap `json:"winner,omitempty"`
}

// VoteByToken submits a MULTIPLAYER vote for the token's own seat.
func (e *Engine) VoteByToken(ctx context.Context, token, mapID string) (VoteResult, error) {
	player, err := e.PlayerByToken(ctx, token)
	if err != nil {
		return VoteResult{}, err
	}
	return e.SubmitVote(ctx, player.SessionID, player.ID, mapID, false)
}

// SubmitVote records one (round, player) vote to ban mapID. Admins may
// submit on a player's behalf with submittedByAdmin, which is stamped on
// the vote row. When the last outstanding vote of the round arrives, the
// round resolves inside the same transaction: the most-voted available map
// is banned (snapshot insertion order breaks ties), every hasVotedThisRound
// flag resets, and the round and turn counters advance. A resolution that
// leaves one available map promotes it to WINNER and completes the session.
func (e *Engine) SubmitVote(ctx context.Context, sessionID, playerID, mapID string, submittedByAdmin bool) (VoteResult, error) {
	var res VoteResult
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		s, err := getSession(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if err := requireStatus(s, "submitVote", veto.StatusInProgress); err != nil {
			return err
		}
		if s.Format != veto.FormatMultiplayer {
			return &veto.ValidationError{Field: "format", Reason: "votes are only valid in MULTIPLAYER format"}
		}

		players, err := listPlayers(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		voter := -1
		for i, p := range players {
			if p.ID == playerID {
				voter = i
				break
			}
		}
		if voter < 0 {
			return &veto.NotFoundError{Kind: "player", ID: playerID}
		}
		if players[voter].HasVotedThisRound {
			return &veto.DuplicateError{Field: "vote", Value: fmt.Sprintf("round %d", s.CurrentRound)}
		}

		maps, err := listSessionMaps(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		var target *veto.SessionMap
		for i := range maps {
			if maps[i].ID == mapID {
				target = &maps[i]
				break
			}
		}
		if target == nil {
			return &veto.NotFoundError{Kind: "session map", ID: mapID}
		}
		if target.State != veto.MapAvailable {
			return &veto.ValidationError{Field: "mapId", Reason: fmt.Sprintf("map %q is not available", target.Name)}
		}

		now := e.Now().UTC()
		vote := veto.Vote{
			ID:               newID(),
			SessionID:        sessionID,
			Round:            s.CurrentRound,
			PlayerID:         playerID,
			MapID:            mapID,
			SubmittedAt:      now,
			SubmittedByAdmin: submittedByAdmin,
		}
		if err := putVote(ctx, tx, vote); err != nil {
			return err
		}

		players[voter].HasVotedThisRound = true
		if err := putPlayer(ctx, tx, players[voter]); err != nil {
			return err
		}

		actor, actorID := veto.ActorPlayer, playerID
		if submittedByAdmin {
			actor = veto.ActorAdmin
		}
		if err := recordAudit(ctx, tx, now, sessionID, veto.ActionVoteSubmitted, actor, actorID, map[string]any{
			"mapId": mapID,
			"round": s.CurrentRound,
		}); err != nil {
			return err
		}

		res = VoteResult{Vote: vote}

		allVoted := true
		for _, p := range players {
			if !p.HasVotedThisRound {
				allVoted = false
				break
			}
		}
		if allVoted {
			if err := e.resolveRound(ctx, tx, &s, players, maps, &res); err != nil {
				return err
			}
		}

		s.UpdatedAt = now
		if err := putSession(ctx, tx, s); err != nil {
			return err
		}
		res.Session = s
		return nil
	})
	if err != nil {
		return VoteResult{}, err
	}

	e.logger.Info("vote submitted", "session_id", sessionID, "player_id", playerID,
		"round_resolved", res.RoundResolved, "completed", res.Completed)
	return res, nil
}

// resolveRound tallies the current round, bans the winner of the tally and
// resets per-round state. Round bans are collective: they carry a vote
// count and round/turn stamps but no banning player.
func (e *Engine) resolveRound(ctx context.Context, tx *sql.Tx, s *veto.Session, players []veto.SessionPlayer, maps []veto.SessionMap, res *VoteResult) error {
	votes, err := listVotes(ctx, tx, s.ID)
	if err != nil {
		return err
	}
	tally := make(map[string]int)
	for _, v := range votes {
		if v.Round == s.CurrentRound {
			tally[v.MapID]++
		}
	}

	// Highest tally wins the ban; ties fall to the earliest snapshot entry.
	// maps is already in snapshot insertion order.
	banned := -1
	for i, m := range maps {
		if m.State != veto.MapAvailable {
			continue
		}
		if banned < 0 || tally[m.ID] > tally[maps[banned].ID] {
			banned = i
		}
	}
	if banned < 0 {
		return &veto.ValidationError{Field: "round", Reason: "no available maps to resolve"}
	}

	now := e.Now().UTC()
	turn, round, count := s.CurrentTurn, s.CurrentRound, tally[maps[banned].ID]
	maps[banned].State = veto.MapBanned
	maps[banned].BannedAtTurn = &turn
	maps[banned].BannedAtRound = &round
	maps[banned].VoteCount = &count
	if err := putSessionMap(ctx, tx, maps[banned]); err != nil {
		return err
	}

	for i := range players {
		players[i].HasVotedThisRound = false
		if err := putPlayer(ctx, tx, players[i]); err != nil {
			return err
		}
	}

	s.CurrentRound++
	s.CurrentTurn++

	if err := recordAudit(ctx, tx, now, s.ID, veto.ActionRoundResolved, veto.ActorSystem, "", map[string]any{
		"round":       round,
		"bannedMapId": maps[banned].ID,
		"votes":       count,
	}); err != nil {
		return err
	}

	res.RoundResolved = true
	bannedCopy := maps[banned]
	res.Banned = &bannedCopy

	winner, completed, err := e.resolveWinner(ctx, tx, s, maps, now)
	if err != nil {
		return err
	}
	res.Winner = winner
	res.Completed = completed
	return nil
}
