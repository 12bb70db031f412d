package engine

import (
	"github.com/chatforge/go-chatbot-backend/internal/domain"
	"github.com/chatforge/go-chatbot-backend/internal/match"
)

// kbScoreFloor is the hard minimum a knowledge-base entry must strictly
// exceed to win, even as the sole candidate.
const kbScoreFloor = 0.3

// Blend weights for question overlap vs. keyword hits.
const (
	kbQuestionWeight = 0.6
	kbKeywordWeight  = 0.4
)

// KBMatch is the winning knowledge-base entry and its blended score.
type KBMatch struct {
	Entry *domain.KnowledgeBaseEntry
	Score float64
}

// RankKnowledgeBase scores every active entry against the message and
// returns the best match above the confidence floor, or nil.
//
// Per entry: score = (0.6*wordOverlap(question, message) + 0.4*keywordHitRatio)
// scaled by the author-supplied confidence weight. Entries are scanned in
// stored order and a candidate replaces the current best only on a strictly
// greater score, so ties keep the first-seen entry and results are
// deterministic for a fixed entry ordering.
func RankKnowledgeBase(message string, entries []domain.KnowledgeBaseEntry) *KBMatch {
	var best *KBMatch
	for i := range entries {
		e := &entries[i]
		if !e.IsActive {
			continue
		}

		overlap := match.WordOverlapScore(e.Question, message)

		hits := 0
		for _, kw := range e.Keywords {
			if match.ContainsKeyword(message, kw) {
				hits++
			}
		}
		ratio := 0.0
		if len(e.Keywords) > 0 {
			ratio = float64(hits) / float64(len(e.Keywords))
		}

		score := (kbQuestionWeight*overlap + kbKeywordWeight*ratio) * e.Confidence
		if score <= kbScoreFloor {
			continue
		}
		if best == nil || score > best.Score {
			best = &KBMatch{Entry: e, Score: score}
		}
	}
	return best
}
