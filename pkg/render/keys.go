package render

// 纹理标识
const (
	BackKey      = "back"
	BlankKey     = "blank"
	BlankAceKey  = "blank_ace"
	BlankKingKey = "blank_king"
)

var suitLetters = map[string]string{
	"CLUBS":    "c",
	"DIAMONDS": "d",
	"HEARTS":   "h",
	"SPADES":   "s",
}

var rankTokens = map[string]string{
	"ACE": "a", "TWO": "2", "THREE": "3", "FOUR": "4", "FIVE": "5",
	"SIX": "6", "SEVEN": "7", "EIGHT": "8", "NINE": "9", "TEN": "10",
	"JACK": "j", "QUEEN": "q", "KING": "k",
}

// CardKey 返回牌面纹理标识：花色字母加点数，如 "h10"、"sa"
func CardKey(suit, rank string) (string, bool) {
	s, ok := suitLetters[suit]
	if !ok {
		return "", false
	}
	r, ok := rankTokens[rank]
	if !ok {
		return "", false
	}
	return s + r, true
}

// PlaceholderKey 返回空牌堆占位纹理标识
func PlaceholderKey(back string) string {
	switch back {
	case "ace":
		return BlankAceKey
	case "king":
		return BlankKingKey
	default:
		return BlankKey
	}
}

// parseCardKey 把 "h10" 拆成花色字母和点数标记
func parseCardKey(key string) (suit, rank string, ok bool) {
	if len(key) < 2 {
		return "", "", false
	}
	suit, rank = key[:1], key[1:]
	switch suit {
	case "c", "d", "h", "s":
	default:
		return "", "", false
	}
	for _, r := range rankTokens {
		if r == rank {
			return suit, rank, true
		}
	}
	return "", "", false
}
