/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/julienschmidt/httprouter"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/Seednode/trivia/internal/cards"
	"github.com/Seednode/trivia/internal/observability"
)

const maxCardsBody = 1 << 20

type cardsSaved struct {
	Success    bool           `json:"success"`
	Categories map[string]int `json:"categories,omitempty"`
	Error      string         `json:"error,omitempty"`
}

func serveCards(cfg *Config, logger *zap.Logger, bank *cards.Bank, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		written, err := writeJSON(cfg, w, http.StatusOK, bank.Deck())
		if err != nil {
			errs <- err

			return
		}

		served(logger, "question bank", r, written, startTime)
	}
}

// uploadName picks the decoder for an uploaded deck from its content type,
// sniffing the body when the client did not say.
func uploadName(r *http.Request, data []byte) string {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case strings.Contains(mediaType, "yaml"):
		return "upload.yaml"
	case strings.Contains(mediaType, "json"):
		return "upload.json"
	case mimetype.Detect(data).Is("application/json"):
		return "upload.json"
	}
	return "upload.yaml"
}

func saveCards(cfg *Config, logger *zap.Logger, bank *cards.Bank, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCardsBody))
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			_, _ = writeJSON(cfg, w, http.StatusRequestEntityTooLarge, cardsSaved{Error: "question bank is too large"})
			return
		case err != nil:
			_, _ = writeJSON(cfg, w, http.StatusBadRequest, cardsSaved{Error: "could not read question bank"})
			return
		}

		deck, err := cards.Decode(uploadName(r, data), data)
		if err != nil {
			_, _ = writeJSON(cfg, w, http.StatusBadRequest, cardsSaved{Error: err.Error()})
			return
		}

		if err := bank.Save(deck); err != nil {
			logger.Error(observability.Cards.Msg("saving question bank"), zap.Error(err))
			_, _ = writeJSON(cfg, w, http.StatusInternalServerError, cardsSaved{Error: "could not save question bank"})
			return
		}

		counts := lo.MapValues(deck.Categories, func(c []cards.Card, _ string) int { return len(c) })

		logger.Info(observability.Cards.Msg("question bank replaced"),
			zap.Int("cards", lo.Sum(lo.Values(counts))),
			zap.String("remote", realIP(r)),
		)

		_, err = writeJSON(cfg, w, http.StatusOK, cardsSaved{Success: true, Categories: counts})
		if err != nil {
			errs <- err

			return
		}
	}
}
