// Package tts turns scene scripts into synthesized, duration-measured audio
// parts, with caching and in-flight request sharing.
package tts

import (
	"fmt"
	"strings"
)

// MarkupAnnotator converts plain script text into the synthesis markup the
// remote endpoint consumes. The annotator is an external collaborator; the
// default implementation inserts pauses at sentence punctuation.
type MarkupAnnotator interface {
	Annotate(text string) string
}

// PauseAnnotator wraps the text in speak tags and inserts break tags after
// clause and sentence punctuation so synthesized speech breathes naturally.
type PauseAnnotator struct {
	ClausePauseMs   int
	SentencePauseMs int
}

func NewPauseAnnotator() *PauseAnnotator {
	return &PauseAnnotator{
		ClausePauseMs:   150,
		SentencePauseMs: 350,
	}
}

var sentenceEnders = []string{".", "!", "?", "。", "！", "？"}
var clauseEnders = []string{",", ";", ":", "，", "；", "："}

func (a *PauseAnnotator) Annotate(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(text) + 64)
	b.WriteString("<speak>")

	runes := []rune(text)
	for i, r := range runes {
		b.WriteRune(r)
		s := string(r)
		atEnd := i == len(runes)-1
		switch {
		case contains(sentenceEnders, s) && !atEnd:
			b.WriteString(breakTag(a.SentencePauseMs))
		case contains(clauseEnders, s) && !atEnd:
			b.WriteString(breakTag(a.ClausePauseMs))
		}
	}

	b.WriteString("</speak>")
	return b.String()
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func breakTag(ms int) string {
	return fmt.Sprintf(`<break time="%dms"/>`, ms)
}
