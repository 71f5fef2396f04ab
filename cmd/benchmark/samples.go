package main

// Sample is one benchmark input.
type Sample struct {
	Name string
	Text string
}

// Samples are short learner sentences with typical grammar mistakes, at
// increasing lengths. The model truncates input at 512 tokens, so the longest
// stays well under that.
var Samples = []Sample{
	{
		Name: "tense",
		Text: "Yesterday I go to the market and buy some apples.",
	},
	{
		Name: "agreement",
		Text: "He go to school every day and she have a lot of homework.",
	},
	{
		Name: "articles",
		Text: "I has a apple and an banana in my bag, but I forgot a water bottle at the home.",
	},
	{
		Name: "paragraph",
		Text: "Last summer me and my brother travels to the mountains. We was very excited because " +
			"we never seen snow before. The hotel were small but the peoples there was very kind with us. " +
			"Every morning we eats breakfast near the window and watch how the sun rise over the hills.",
	},
	{
		Name: "already-correct",
		Text: "The quick brown fox jumps over the lazy dog.",
	},
}

// QualitySamples are used by --quality to show each correction with its scores.
var QualitySamples = []Sample{
	{Name: "tense", Text: "She don't like when people is late."},
	{Name: "agreement", Text: "The list of items are on the desk."},
	{Name: "plural", Text: "There is many reason to learn a new languages."},
	{Name: "preposition", Text: "I am agree with you on this point."},
	{Name: "word-order", Text: "I like very much this song."},
	{Name: "already-correct", Text: "This sentence is already correct."},
}
