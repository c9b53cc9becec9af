package service

import "strings"

// emotionRank orders known labels; lower ranks take precedence.
var emotionRank = map[string]int{
	"depressed": 1,
	"sad":       1,
	"tired":     2,
	"anxious":   2,
	"grateful":  3,
	"happy":     3,
	"neutral":   4,
}

// DefaultEmotion is the aggregate of no ranked labels.
const DefaultEmotion = "neutral"

// Aggregate collapses emotion labels into the single highest-precedence label.
// A label replaces the current pick only if it is ranked and either the pick is
// unranked or the label ranks strictly lower. Equal ranks keep the first seen.
// Labels are matched exactly.
func Aggregate(labels []string) string {
	best := DefaultEmotion
	for _, e := range labels {
		r, ranked := emotionRank[e]
		if !ranked {
			continue
		}
		cur, curRanked := emotionRank[best]
		if !curRanked || r < cur {
			best = e
		}
	}
	return best
}

// emotionSynonyms maps Korean emotion words onto ranked labels.
var emotionSynonyms = map[string]string{
	"슬픔":  "sad",
	"슬퍼":  "sad",
	"슬프다": "sad",
	"속상함": "sad",
	"우울":  "depressed",
	"우울함": "depressed",
	"우울해": "depressed",
	"피곤":  "tired",
	"피곤함": "tired",
	"지침":  "tired",
	"불안":  "anxious",
	"불안함": "anxious",
	"걱정":  "anxious",
	"감사":  "grateful",
	"고마움": "grateful",
	"행복":  "happy",
	"행복함": "happy",
	"기쁨":  "happy",
	"신남":  "happy",
	"평온":  "neutral",
	"보통":  "neutral",
}

// NormalizeEmotion maps a label onto its ranked form when one is known.
// Unknown labels come back trimmed and otherwise unchanged.
func NormalizeEmotion(label string) string {
	l := strings.ToLower(strings.TrimSpace(label))
	if _, ok := emotionRank[l]; ok {
		return l
	}
	if ranked, ok := emotionSynonyms[l]; ok {
		return ranked
	}
	return strings.TrimSpace(label)
}

// representativeEmotion picks the label handed to the classifier. Ranked labels
// aggregate by precedence; when none of them is ranked the first label stands
// in, so free-form emotions still get classified.
func representativeEmotion(labels []string) string {
	if len(labels) == 0 {
		return DefaultEmotion
	}
	normalized := make([]string, 0, len(labels))
	anyRanked := false
	for _, l := range labels {
		n := NormalizeEmotion(l)
		if _, ok := emotionRank[n]; ok {
			anyRanked = true
		}
		normalized = append(normalized, n)
	}
	if !anyRanked {
		return normalized[0]
	}
	return Aggregate(normalized)
}
