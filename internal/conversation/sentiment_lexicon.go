package conversation

import (
	"strings"
	"unicode"
)

// afinnValence is a subset of the AFINN-165 word list: integer valence from
// -5 (very negative) to +5 (very positive). It covers the emotional and
// conversational vocabulary of this domain; words outside it score 0.
var afinnValence = map[string]int{
	"abandon": -2, "abandoned": -2, "abuse": -3, "abused": -3, "accept": 1, "accepted": 1,
	"accomplish": 2, "accomplished": 2, "ache": -2, "aching": -2, "afraid": -2, "agonize": -3,
	"alone": -2, "amazing": 4, "anger": -3, "angry": -3, "anguish": -3, "annoyed": -2,
	"annoying": -2, "anxiety": -2, "anxious": -2, "apathetic": -3, "appreciate": 2, "appreciated": 2,
	"ashamed": -2, "awesome": 4, "awful": -3, "bad": -3, "beautiful": 3, "best": 3,
	"better": 2, "bitter": -2, "blame": -2, "blessed": 2, "bored": -2, "boring": -3,
	"brave": 2, "broken": -1, "burden": -2, "calm": 2, "care": 2, "cared": 2,
	"celebrate": 3, "celebrated": 3, "cheer": 2, "cheerful": 2, "clarity": 2, "comfort": 2,
	"comfortable": 2, "confident": 2, "confused": -2, "confusing": -2, "content": 2, "cool": 1,
	"crap": -3, "crisis": -3, "cry": -1, "crying": -2, "cried": -2, "damn": -4,
	"dead": -3, "defeated": -2, "delight": 3, "delighted": 3, "depressed": -2, "depressing": -2,
	"desperate": -3, "despair": -3, "devastated": -2, "difficult": -1, "disappointed": -2, "disappointing": -2,
	"disaster": -2, "discouraged": -2, "disgusted": -3, "dread": -2, "drained": -2, "dumb": -3,
	"easy": 1, "ecstatic": 4, "embarrassed": -2, "empty": -1, "encouraged": 2, "energetic": 2,
	"enjoy": 2, "enjoyed": 2, "excellent": 3, "excited": 3, "exciting": 3, "exhausted": -2,
	"fail": -2, "failed": -2, "failing": -2, "failure": -2, "fantastic": 4, "fear": -2,
	"fearful": -2, "fine": 2, "frustrated": -2, "fun": 4, "furious": -3, "glad": 3,
	"good": 3, "grateful": 3, "great": 3, "grief": -2, "guilt": -3, "guilty": -3,
	"happy": 3, "hate": -3, "hated": -3, "hates": -3, "heartbroken": -3, "help": 2,
	"helpful": 2, "helpless": -2, "hope": 2, "hopeful": 2, "hopeless": -2, "horrible": -3,
	"hurt": -2, "hurting": -2, "ignored": -2, "improve": 2, "improved": 2, "inspired": 2,
	"irritated": -3, "isolated": -1, "joy": 3, "joyful": 3, "kind": 2, "lonely": -2,
	"lose": -3, "losing": -3, "lost": -3, "love": 3, "loved": 3, "lovely": 3,
	"mad": -3, "mess": -2, "miserable": -3, "miss": -2, "mistake": -2, "motivated": 2,
	"nervous": -2, "nice": 3, "numb": -1, "ok": 0, "okay": 0, "overwhelmed": -2,
	"pain": -2, "painful": -2, "panic": -3, "peace": 2, "peaceful": 2, "perfect": 3,
	"pleased": 3, "positive": 2, "pressure": -1, "problem": -2, "proud": 2, "regret": -2,
	"rejected": -1, "relaxed": 2, "relief": 1, "relieved": 2, "sad": -2, "sadness": -2,
	"safe": 1, "scared": -2, "scary": -2, "shame": -2, "sick": -2, "sorry": -1,
	"stress": -1, "stressed": -2, "stressful": -2, "strong": 2, "struggle": -2, "struggling": -2,
	"stuck": -2, "stupid": -2, "success": 2, "successful": 3, "suffer": -2, "suffering": -2,
	"support": 2, "supported": 2, "terrible": -3, "terrified": -3, "thank": 2, "thankful": 2,
	"thanks": 2, "tired": -2, "trapped": -2, "trouble": -2, "ugly": -3, "unhappy": -2,
	"upset": -2, "useless": -2, "win": 4, "wonderful": 4, "worried": -3, "worry": -3,
	"worse": -3, "worst": -3, "worthless": -2, "wrong": -2, "yay": 3,
}

// negators flip the valence of the word that follows them. Apostrophes are
// stripped before lookup, so "don't" arrives as "dont".
var negators = map[string]bool{
	"not": true, "no": true, "never": true, "dont": true, "doesnt": true, "didnt": true,
	"cant": true, "cannot": true, "wont": true, "isnt": true, "arent": true, "wasnt": true,
	"werent": true, "shouldnt": true, "wouldnt": true, "couldnt": true, "aint": true, "havent": true,
	"hasnt": true, "hadnt": true, "neither": true, "nor": true, "without": true,
}

// sentimentTokens lowercases text, drops punctuation (apostrophes included)
// and splits on whitespace.
func sentimentTokens(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-':
			return unicode.ToLower(r)
		case unicode.IsSpace(r):
			return ' '
		default:
			return -1
		}
	}, text)
	return strings.Fields(cleaned)
}

// SentimentPolarity sums word valences; a negator flips the next word.
func SentimentPolarity(text string) int {
	tokens := sentimentTokens(text)
	score := 0
	for i, token := range tokens {
		valence, ok := afinnValence[token]
		if !ok {
			continue
		}
		if i > 0 && negators[tokens[i-1]] {
			valence = -valence
		}
		score += valence
	}
	return score
}
