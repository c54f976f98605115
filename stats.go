/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/Seednode/trivia/internal/observability"
	"github.com/Seednode/trivia/internal/relay"
	"github.com/Seednode/trivia/internal/room"
)

type roomStateStats struct {
	Scores        map[int]int `json:"scores"`
	Positions     map[int]int `json:"positions"`
	CurrentPlayer int         `json:"currentPlayer"`
}

type roomStats struct {
	Code         string         `json:"code"`
	Master       string         `json:"master"`
	Player1      string         `json:"player1"`
	Player2      string         `json:"player2"`
	Started      bool           `json:"started"`
	State        roomStateStats `json:"state"`
	Created      time.Time      `json:"created"`
	LastActivity time.Time      `json:"lastActivity"`
}

type stats struct {
	TotalRooms    int         `json:"totalRooms"`
	ActiveGames   int         `json:"activeGames"`
	WaitingRooms  int         `json:"waitingRooms"`
	ActivePlayers int         `json:"activePlayers"`
	Uptime        float64     `json:"uptime"`
	Rooms         []roomStats `json:"rooms"`
}

type cleared struct {
	Success bool     `json:"success"`
	Cleaned int      `json:"cleaned"`
	Rooms   []string `json:"rooms"`
}

func collectStats(reg *room.Registry, started time.Time) stats {
	snaps := reg.List()

	active := lo.CountBy(snaps, func(s room.Snapshot) bool { return s.Started })

	return stats{
		TotalRooms:    len(snaps),
		ActiveGames:   active,
		WaitingRooms:  len(snaps) - active,
		ActivePlayers: lo.SumBy(snaps, func(s room.Snapshot) int { return s.Seated() }),
		Uptime:        time.Since(started).Seconds(),
		Rooms: lo.Map(snaps, func(s room.Snapshot, _ int) roomStats {
			return roomStats{
				Code:    s.Code,
				Master:  s.Host.Name,
				Player1: s.TeamName(1),
				Player2: s.TeamName(2),
				Started: s.Started,
				State: roomStateStats{
					Scores:        s.State.Scores,
					Positions:     s.State.Positions,
					CurrentPlayer: s.State.CurrentPlayer,
				},
				Created:      s.CreatedAt,
				LastActivity: s.LastActivity,
			}
		}),
	}
}

func serveStats(cfg *Config, logger *zap.Logger, reg *room.Registry, started time.Time, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		written, err := writeJSON(cfg, w, http.StatusOK, collectStats(reg, started))
		if err != nil {
			errs <- err

			return
		}

		served(logger, "stats", r, written, startTime)
	}
}

// clearRooms runs the idle sweep now instead of waiting for the next tick.
func clearRooms(cfg *Config, logger *zap.Logger, srv *relay.Server, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		maxAge := cfg.idleTimeout
		if maxAge <= 0 {
			maxAge = relay.DefaultOptions().IdleTimeout
		}

		codes := srv.Sweep(maxAge)

		logger.Info(observability.Rooms.Msg("cleared inactive rooms"), zap.Int("count", len(codes)), zap.String("remote", realIP(r)))

		_, err := writeJSON(cfg, w, http.StatusOK, cleared{
			Success: true,
			Cleaned: len(codes),
			Rooms:   lo.Ternary(codes == nil, []string{}, codes),
		})
		if err != nil {
			errs <- err

			return
		}
	}
}
