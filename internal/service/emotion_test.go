package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregate(t *testing.T) {
	tests := []struct {
		name   string
		labels []string
		want   string
	}{
		{"empty", nil, "neutral"},
		{"unknown only", []string{"unknown_word"}, "neutral"},
		{"lower rank wins", []string{"tired", "sad"}, "sad"},
		{"tie keeps first", []string{"happy", "grateful"}, "happy"},
		{"tie keeps first reversed", []string{"grateful", "happy"}, "grateful"},
		{"rank 1 tie", []string{"depressed", "sad"}, "depressed"},
		{"unknown never overrides ranked", []string{"anxious", "furious"}, "anxious"},
		{"ranked after unknown", []string{"furious", "happy"}, "happy"},
		{"neutral label itself", []string{"neutral"}, "neutral"},
		{"happy beats neutral start", []string{"happy"}, "happy"},
		{"severity beats order", []string{"happy", "tired", "grateful", "sad", "anxious"}, "sad"},
		{"exact match only", []string{"Sad", " sad"}, "neutral"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Aggregate(tt.labels))
		})
	}
}

func TestAggregateOrderInsensitiveAcrossRanks(t *testing.T) {
	a := []string{"happy", "tired", "sad"}
	b := []string{"sad", "tired", "happy"}
	assert.Equal(t, Aggregate(a), Aggregate(b))
}

func TestNormalizeEmotion(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{"sad", "sad"},
		{" Happy ", "happy"},
		{"슬픔", "sad"},
		{"우울함", "depressed"},
		{"피곤", "tired"},
		{"걱정", "anxious"},
		{"고마움", "grateful"},
		{"기쁨", "happy"},
		{"평온", "neutral"},
		{" 서운함 ", "서운함"},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeEmotion(tt.label))
		})
	}
}

func TestRepresentativeEmotion(t *testing.T) {
	tests := []struct {
		name   string
		labels []string
		want   string
	}{
		{"no labels", nil, "neutral"},
		{"korean ranked", []string{"기쁨", "슬픔"}, "sad"},
		{"mixed languages", []string{"happy", "피곤함"}, "tired"},
		{"unranked falls back to first", []string{"서운함", "bewildered"}, "서운함"},
		{"ranked beats unranked", []string{"서운함", "행복"}, "happy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, representativeEmotion(tt.labels))
		})
	}
}
