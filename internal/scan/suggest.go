package scan

import (
	"context"
	"strings"

	"github.com/jblick1327/switch-interface/internal/fsm"
	"github.com/jblick1327/switch-interface/internal/layout"
)

// requestSuggestions asks the suggester off the engine loop and posts the
// result back as a control message. The prefix is frozen at request time so a
// late answer composed against an older prefix still types correctly.
func (e *Engine) requestSuggestions(kind layout.Kind) {
	if e.suggester == nil || e.cfg.SuggestionCount <= 0 {
		return
	}
	prefix := string(e.prefix)
	count := e.cfg.SuggestionCount
	timeout := e.cfg.SuggestionTimeout

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		var keys []layout.Key
		switch kind {
		case layout.KindPredictWord:
			words, err := e.suggester.Words(ctx, prefix, count)
			if err != nil {
				e.logger.Debug("word suggestions unavailable", "session", e.session, "error", err.Error())
				return
			}
			keys = wordOverlayKeys(prefix, words)
		case layout.KindPredictLetter:
			letters, err := e.suggester.Letters(ctx, prefix, count)
			if err != nil {
				e.logger.Debug("letter suggestions unavailable", "session", e.session, "error", err.Error())
				return
			}
			keys = letterOverlayKeys(letters)
		}
		if len(keys) == 0 {
			return
		}
		keys = append(keys, dismissKey())

		select {
		case e.controls <- control{kind: ctlSuggestions, keys: keys}:
		case <-e.done:
		}
	}()
}

// wordOverlayKeys builds the transient keys for word completions. Each key
// types only the remainder of the word plus a trailing space, since the
// prefix is already committed.
func wordOverlayKeys(prefix string, words []string) []layout.Key {
	keys := make([]layout.Key, 0, len(words))
	for _, word := range words {
		remainder := strings.TrimPrefix(word, prefix)
		if remainder == "" {
			continue
		}
		keys = append(keys, layout.Key{
			Label: word,
			Kind:  layout.KindCharacter,
			// Action carries the text to type for multi-rune keys.
			Action: remainder + " ",
		})
	}
	return keys
}

func letterOverlayKeys(letters []string) []layout.Key {
	keys := make([]layout.Key, 0, len(letters))
	for _, letter := range letters {
		if letter == "" {
			continue
		}
		keys = append(keys, layout.Key{
			Label: letter,
			Kind:  layout.KindCharacter,
		})
	}
	return keys
}

func dismissKey() layout.Key {
	return layout.Key{
		Label:  "✕",
		Kind:   layout.KindControl,
		Action: layout.ActionOverlayDismiss,
	}
}

// commitOverlayKey commits the highlighted overlay key and tears the overlay
// down. Committing a completion resets the tracked prefix; the word is done.
func (e *Engine) commitOverlayKey() {
	key := e.overlay.keys[e.overlay.index]
	e.overlay = nil

	if key.Kind != layout.KindControl || key.Action != layout.ActionOverlayDismiss {
		e.enqueueCommit(key)
		if strings.HasSuffix(key.Text(), " ") {
			e.prefix = e.prefix[:0]
		} else {
			e.trackPrefix(key)
		}
	}

	e.transition(fsm.EventCommit)
	e.arm()
	e.publish()
}
