// Package summary produces the short publication summaries shown in lists.
// It keeps the first three sentences of the abstract.
package summary

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	maxSentences   = 3
	noAbstract     = "No abstract provided."
	genericSummary = "A summary of this publication."
)

func Summarize(abstract string) string {
	if abstract == "" {
		return noAbstract
	}

	sentences := strings.Split(norm.NFC.String(abstract), ".")
	if len(sentences) > maxSentences {
		sentences = sentences[:maxSentences]
	}

	s := strings.TrimRight(strings.TrimSpace(strings.Join(sentences, ".")), ". ")
	if s == "" {
		return genericSummary
	}
	return s + "."
}
